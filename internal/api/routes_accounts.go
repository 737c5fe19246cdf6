package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nvasquez/accounthub/internal/handlers"
)

func registerAccountRoutes(api *gin.RouterGroup, accounts *handlers.AccountHandler, invitations *handlers.InvitationHandler) {
	group := api.Group("/accounts")
	{
		group.GET("", accounts.List)
		group.GET("/:id", accounts.Get)
		group.GET("/:id/dashboard", accounts.Dashboard)
		group.DELETE("/:id", accounts.Delete)
		group.GET("/:id/members", accounts.ListMembers)
		group.POST("/:id/members", accounts.AddMember)
		group.DELETE("/:id/members/:userId", accounts.RemoveMember)
		group.GET("/:id/invitations", invitations.ListForAccount)
		group.POST("/:id/invitations", invitations.Create)
	}
}
