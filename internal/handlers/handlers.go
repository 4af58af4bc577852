package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bistro/auth/internal/config"
	"bistro/auth/internal/middleware"
	"bistro/auth/internal/models"
	"bistro/auth/internal/repository"
	"bistro/auth/internal/service"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	store       repository.Store
	cache       *redis.Client
	authService *service.AuthService
	sessions    *service.SessionService
	reaper      *service.Reaper
}

// NewHandlerSet wires the HTTP surface. cache may be nil when no queue is
// configured.
func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	store repository.Store,
	cache *redis.Client,
	auth *service.AuthService,
	sessions *service.SessionService,
	reaper *service.Reaper,
) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		store:       store,
		cache:       cache,
		authService: auth,
		sessions:    sessions,
		reaper:      reaper,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.cfg, h.sessions))
		protected.GET("/me", h.Me)
	}

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.sessions),
		middleware.RequireRoles(models.AdminRoleSuperAdmin),
	)
	admin.POST("/maintenance/sweep", h.AdminSweep)
	admin.POST("/accounts/:id/sessions/revoke", h.AdminRevokeSessions)
}
