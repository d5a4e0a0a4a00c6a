package router

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	healthHandler := func(c *gin.Context) {
		dbStatus := "ok"
		if err := r.Container.DB.Exec("SELECT 1").Error; err != nil {
			dbStatus = err.Error()
			r.Logger.Error("Database health check failed", "error", err)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		redisStatus := "ok"
		if err := r.Container.Redis.Ping(ctx).Err(); err != nil {
			redisStatus = err.Error()
			r.Logger.Error("Redis health check failed", "error", err)
		}

		c.JSON(200, gin.H{
			"status":    "ok",
			"version":   os.Getenv("APP_VERSION"),
			"timestamp": time.Now().Format(time.RFC3339),
			"components": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
			},
		})
	}

	r.Engine.GET("/health", healthHandler)
	r.Engine.GET("/api/v1/health", healthHandler)
}
