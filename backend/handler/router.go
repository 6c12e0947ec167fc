package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gleeclub/portal/backend/config"
	"github.com/gleeclub/portal/backend/middleware"
	"github.com/gleeclub/portal/backend/service"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Store   service.Store
	Docs    service.DocumentStore
	Signing *service.SigningService
	IDs     service.IDGenerator
}

// NewRouter wires middleware and routes onto a new gin engine.
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	authHandler := NewAuthHandler(cfg)
	contractHandler := NewContractHandler(deps.Store, deps.Docs, deps.IDs)
	signatureHandler := NewSignatureHandler(deps.Signing)

	router := gin.New() // Use New() instead of Default() to avoid default middleware

	router.Use(middleware.RequestID())     // Request ID for tracing
	router.Use(middleware.Recovery())      // Panic recovery
	router.Use(middleware.RequestLogger()) // Access logging
	router.Use(middleware.CORS())
	router.Use(middleware.NoStore())

	window := time.Duration(cfg.Server.RateLimitWindow) * time.Second
	bodyLimit := cfg.Server.MaxBodyBytes
	if bodyLimit <= 0 {
		bodyLimit = config.DefaultMaxBodyBytes
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", middleware.RateLimit(cfg.Server.RateLimit, window), authHandler.Login)
	}

	// Protected routes, rate limited per user
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.Use(middleware.RateLimit(cfg.Server.RateLimit, window))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/contracts", contractHandler.List)
		protected.GET("/contracts/:id", contractHandler.Get)
		protected.GET("/contracts/:id/document", contractHandler.Document)
		protected.POST("/sign/artist", middleware.BodyLimit(bodyLimit), signatureHandler.ArtistSign)
	}

	admin := protected.Group("/")
	admin.Use(middleware.RequireRole(config.RoleAdmin))
	{
		admin.POST("/contracts", contractHandler.Create)
		admin.GET("/contracts/:id/signature", contractHandler.GetSignature)
		admin.POST("/sign/admin", middleware.BodyLimit(bodyLimit), signatureHandler.AdminSign)
	}

	return router
}
