package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/nvasquez/accounthub/internal/app"
	iauth "github.com/nvasquez/accounthub/internal/auth"
	"github.com/nvasquez/accounthub/internal/handlers"
	"github.com/nvasquez/accounthub/internal/middleware"
	"github.com/nvasquez/accounthub/internal/services"
	"github.com/nvasquez/accounthub/internal/storage"
	"github.com/nvasquez/accounthub/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, sessions *iauth.SessionService, cfg *app.Config, mailer mail.Mailer) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	userSvc, err := services.NewUserService(db, auditSvc)
	if err != nil {
		return nil, err
	}
	accountSvc, err := services.NewAccountService(db, auditSvc)
	if err != nil {
		return nil, err
	}
	invitationSvc, err := services.NewInvitationService(db, accountSvc, auditSvc, mailer)
	if err != nil {
		return nil, err
	}

	avatars, err := storage.NewAvatarStore(cfg.Uploads.Dir, cfg.Uploads.MaxAvatarSize)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/uploads", avatars.Dir())

	authHandler := handlers.NewAuthHandler(userSvc, sessions)
	profileHandler := handlers.NewProfileHandler(userSvc, accountSvc, avatars)
	accountHandler := handlers.NewAccountHandler(accountSvc, invitationSvc)
	invitationHandler := handlers.NewInvitationHandler(invitationSvc, userSvc)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	registerAuthRoutes(r, api, authHandler)
	registerProfileRoutes(api, profileHandler)
	registerAccountRoutes(api, accountHandler, invitationHandler)
	registerInvitationRoutes(api, invitationHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
