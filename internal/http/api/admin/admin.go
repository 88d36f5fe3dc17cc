package admin

import (
	"github.com/apexgirl/reportanalyzer/internal/http/api"
	handlers "github.com/apexgirl/reportanalyzer/internal/http/api/admin/handlers"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/gin-gonic/gin"
)

// Store is everything the admin routes read and write.
type Store interface {
	api.KeyStore
	handlers.SubjectStore
	handlers.APIKeyStore
}

// RegisterAdminRoutes registers admin routes behind admin-scope API keys.
func RegisterAdminRoutes(r *gin.Engine, s Store) {
	if r == nil || s == nil {
		return
	}

	authed := r.Group("/api/admin")
	authed.Use(api.APIKeyAuth(s, models.APIKeyScopeAdmin, true))

	userHandler := handlers.NewUserHandler(s)
	authed.POST("/users", userHandler.Create)
	authed.DELETE("/users/:id", userHandler.Delete)

	groupHandler := handlers.NewGroupHandler(s)
	authed.POST("/groups", groupHandler.Create)
	authed.DELETE("/groups/:id", groupHandler.Delete)

	apiKeyHandler := handlers.NewAPIKeyHandler(s)
	authed.POST("/api-keys", apiKeyHandler.Create)
	authed.GET("/api-keys", apiKeyHandler.List)
	authed.DELETE("/api-keys/:id", apiKeyHandler.Revoke)
}
