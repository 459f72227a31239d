package router

import (
	"net/http"
	"path/filepath"
	"strings"

	"whatsjuju-chat/backend/internal/api"
	"whatsjuju-chat/backend/pkg/di"
	"whatsjuju-chat/backend/pkg/errors"
	"whatsjuju-chat/backend/pkg/logger"
	"whatsjuju-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger

	rateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.LogError(err, "invalid trusted proxies")
	}

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	opts := middleware.DefaultRateLimiterOptions()
	if cfg.Security.RateLimit > 0 {
		opts.Limit = rate.Limit(cfg.Security.RateLimit)
	}
	if cfg.Security.RateLimitBurst > 0 {
		opts.Burst = cfg.Security.RateLimitBurst
	}
	rateLimiter := middleware.NewRateLimiter(container.Logger, opts)
	engine.Use(rateLimiter.Middleware())
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		rateLimiter: rateLimiter,
	}
}

// SetupRoutes registers all application routes. metrics may be nil.
func (r *Router) SetupRoutes(metrics http.Handler) {
	c := r.Container
	r.Engine.Use(corsMiddleware(c.Config.Security.AllowedOrigins))

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService)

	authHandler := api.NewAuthHandler(c.UserService)
	characterHandler := api.NewCharacterHandler(c.CharacterService)
	conversationHandler := api.NewConversationHandler(c.ChatService, c.ConversationService)
	messageHandler := api.NewMessageHandler(c.ChatService, c.ConversationService)
	wsHandler := api.NewWSHandler(c.Hub, c.Config.Security.AllowedOrigins)

	healthHandler := gin.WrapF(c.Health.HTTPHandler())
	r.Engine.GET("/health", healthHandler)
	if metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(metrics))
	}

	// stored FilePath values are "<base of root>/images/..."
	root := c.Uploader.Root()
	r.Engine.Static("/"+filepath.Base(root), root)

	v1 := r.Engine.Group("/api/v1")
	v1.GET("/health", healthHandler)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", jwtAuth, authHandler.Me)
	}

	protected := v1.Group("")
	protected.Use(jwtAuth)
	{
		protected.GET("/characters", characterHandler.List)
		protected.GET("/characters/:id", characterHandler.Get)

		conversations := protected.Group("/conversations")
		conversations.GET("", conversationHandler.List)
		conversations.POST("", conversationHandler.Start)
		conversations.DELETE("", conversationHandler.Clear)
		conversations.GET("/:id", conversationHandler.Get)
		conversations.PATCH("/:id", conversationHandler.Update)
		conversations.DELETE("/:id", conversationHandler.Delete)
		conversations.GET("/:id/messages", messageHandler.List)
		conversations.POST("/:id/messages", messageHandler.Send)
		conversations.POST("/:id/uploads", messageHandler.Upload)

		protected.DELETE("/messages/:id", messageHandler.Delete)
		protected.GET("/ws", wsHandler.Serve)
	}
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.rateLimiter.Stop()
}

// bodyLimit caps request bodies; multipart uploads need room above the file limit
func bodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}

// corsMiddleware allows the configured origins, including WebSocket upgrade headers
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[strings.TrimSpace(o)] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		case set[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin, Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
