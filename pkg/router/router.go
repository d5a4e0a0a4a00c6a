package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"banking-chatbot/engine/internal/api"
	"banking-chatbot/engine/pkg/config"
	"banking-chatbot/engine/pkg/di"
	"banking-chatbot/engine/pkg/errors"
	"banking-chatbot/engine/pkg/jwt"
	"banking-chatbot/engine/pkg/logger"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger first to capture all requests, then the error translator,
	// then recovery so panics still produce structured logs.
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	whatsappController := api.NewWhatsAppController(
		r.Container.WhatsApp,
		r.Container.Dispatcher,
		r.Container.Deduplicator,
		r.Config,
		r.Logger,
	)
	ussdController := api.NewUSSDController(
		r.Container.USSD,
		r.Container.Dispatcher,
		r.Container.Deduplicator,
		r.Logger,
	)
	opsController := api.NewOpsController(r.Container.Store, r.Container.Gate, r.Logger)

	v1 := r.Engine.Group("/api/v1")

	// Channel endpoints authenticate at the provider/gateway layer, not
	// with operator tokens.
	whatsappController.RegisterRoutesV1(v1)
	ussdController.RegisterRoutesV1(v1)

	opsRoutes := v1.Group("/ops")
	opsRoutes.Use(jwt.AuthMiddleware(r.Container.JWTService, r.Logger))
	opsController.RegisterRoutes(opsRoutes)

	r.setupHealthRoutes()

	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Authorization, Origin")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
