package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nvasquez/accounthub/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	api.GET("/dashboard", handler.Dashboard)

	profile := api.Group("/profile")
	{
		profile.GET("", handler.Get)
		profile.PATCH("", handler.Update)
		profile.POST("/avatar", handler.UploadAvatar)
		profile.PUT("/password", handler.ChangePassword)
	}
}
