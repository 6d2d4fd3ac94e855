package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dealflow/mailsync/api/handlers"
	"github.com/dealflow/mailsync/api/middleware"
	"github.com/dealflow/mailsync/internal/repository"
	"github.com/dealflow/mailsync/internal/tracing"
	"github.com/dealflow/mailsync/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(repos, s)

	// Health endpoint stays open
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILSYNC-API-KEY",
		ValidAPIKey: apikey,
	})

	v1 := r.Group("/v1")
	v1.Use(apiKeyMiddleware)
	v1.Use(middleware.TracingMiddleware())
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", apiHandlers.Accounts.Create())
			accounts.GET("/:id", apiHandlers.Accounts.Get())
			accounts.POST("/:id/sync", apiHandlers.Accounts.Sync())
			accounts.POST("/:id/sync/incremental", apiHandlers.Accounts.SyncIncremental())
			accounts.GET("/:id/threads", apiHandlers.Accounts.Threads())
			accounts.POST("/:id/messages", apiHandlers.Messages.Send())
			accounts.GET("/:id/search", apiHandlers.Search.Query())
		}

		threads := v1.Group("/threads")
		{
			threads.GET("/:id", apiHandlers.Messages.Thread())
			threads.GET("/:id/insights", apiHandlers.Attachments.ThreadInsights())
		}

		attachments := v1.Group("/attachments")
		{
			attachments.POST("/:id/extract", apiHandlers.Attachments.Extract())
		}
	}
}
