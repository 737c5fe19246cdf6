package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nvasquez/accounthub/internal/handlers"
)

func registerInvitationRoutes(api *gin.RouterGroup, handler *handlers.InvitationHandler) {
	group := api.Group("/invitations")
	{
		group.GET("", handler.ListMine)
		group.POST("/:id/accept", handler.Accept)
		group.POST("/:id/decline", handler.Decline)
	}
}
