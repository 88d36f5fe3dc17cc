// Package api holds middleware shared by the front and admin routes.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Context keys set by APIKeyAuth.
const (
	ContextAPIKeyID    = "apiKeyID"
	ContextAPIKeyScope = "apiKeyScope"
)

// KeyStore resolves API keys.
type KeyStore interface {
	ActiveAPIKeys(ctx context.Context, prefix string, now time.Time) ([]models.APIKey, error)
	TouchAPIKey(ctx context.Context, id uint64, now time.Time) error
}

// APIKeyAuth validates the caller's API key. Keys are read from the
// Authorization bearer header or X-API-Key. When required is false requests
// without a key pass through; a presented key is still verified.
func APIKeyAuth(keys KeyStore, scope models.APIKeyScope, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := presentedKey(c)
		if token == "" {
			if !required {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}

		now := time.Now().UTC()
		rows, errFind := keys.ActiveAPIKeys(c.Request.Context(), security.APIKeyLookupPrefix(token), now)
		if errFind != nil {
			log.WithError(errFind).Error("api key lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "api key lookup failed"})
			return
		}
		var matched *models.APIKey
		for i := range rows {
			if security.CheckAPIKey(rows[i].KeyHash, token) == nil {
				matched = &rows[i]
				break
			}
		}
		if matched == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		if scope == models.APIKeyScopeAdmin && matched.Scope != models.APIKeyScopeAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin scope required"})
			return
		}
		if errTouch := keys.TouchAPIKey(c.Request.Context(), matched.ID, now); errTouch != nil {
			log.WithError(errTouch).Warn("record api key use failed")
		}

		c.Set(ContextAPIKeyID, matched.ID)
		c.Set(ContextAPIKeyScope, matched.Scope)
		c.Next()
	}
}

func presentedKey(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader("X-API-Key"))
}
