package front

import (
	"github.com/apexgirl/reportanalyzer/internal/http/api"
	"github.com/apexgirl/reportanalyzer/internal/http/api/front/handlers"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/gin-gonic/gin"
)

// Deps groups what the public routes need.
type Deps struct {
	Processor      handlers.Processor
	Quota          handlers.QuotaReader
	Submissions    handlers.SubmissionReader
	Tiers          handlers.TierLister
	Keys           api.KeyStore
	Ping           handlers.Pinger
	MaxUploadBytes int64
	RequireAPIKey  bool
}

// RegisterFrontRoutes registers the upload, quota and status routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", healthHandler.Health)
	r.GET("/api/status/health", healthHandler.Health)

	tierHandler := handlers.NewTierHandler(deps.Tiers)
	r.GET("/api/tiers", tierHandler.List)

	authed := r.Group("/api")
	if deps.Keys != nil {
		authed.Use(api.APIKeyAuth(deps.Keys, models.APIKeyScopeClient, deps.RequireAPIKey))
	}

	uploadHandler := handlers.NewUploadHandler(deps.Processor, deps.MaxUploadBytes)
	authed.POST("/upload", uploadHandler.Upload)

	quotaHandler := handlers.NewQuotaHandler(deps.Quota)
	authed.GET("/user/quota/:userId", quotaHandler.Get)

	submissionHandler := handlers.NewSubmissionHandler(deps.Submissions)
	authed.GET("/uploads/:id", submissionHandler.Get)
}
