package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/security"
	"github.com/apexgirl/reportanalyzer/internal/store"
	"github.com/gin-gonic/gin"
)

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uint64, now time.Time) error
}

// APIKeyHandler manages admin API key endpoints.
type APIKeyHandler struct {
	store APIKeyStore
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(s APIKeyStore) *APIKeyHandler {
	return &APIKeyHandler{store: s}
}

// Create issues a new API key. The plaintext is returned once.
func (h *APIKeyHandler) Create(c *gin.Context) {
	// body holds the create request payload.
	var body struct {
		Name      string     `json:"name"`
		Admin     bool       `json:"admin"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	token, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate api key failed"})
		return
	}
	hash, errHash := security.HashAPIKey(token)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash api key failed"})
		return
	}
	scope := models.APIKeyScopeClient
	if body.Admin {
		scope = models.APIKeyScopeAdmin
	}
	row := models.APIKey{
		Name:      name,
		Prefix:    security.APIKeyLookupPrefix(token),
		KeyHash:   hash,
		Scope:     scope,
		IsActive:  true,
		ExpiresAt: body.ExpiresAt,
	}
	if errCreate := h.store.CreateAPIKey(c.Request.Context(), &row); errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create api key failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":    row.ID,
		"name":  row.Name,
		"scope": row.Scope,
		"token": token,
	})
}

// List returns all API keys without secrets.
func (h *APIKeyHandler) List(c *gin.Context) {
	rows, errFind := h.store.ListAPIKeys(c.Request.Context())
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list api keys failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"name":         row.Name,
			"key_prefix":   row.Prefix,
			"scope":        row.Scope,
			"active":       row.IsActive,
			"expires_at":   row.ExpiresAt,
			"revoked_at":   row.RevokedAt,
			"last_used_at": row.LastUsedAt,
			"created_at":   row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": out})
}

// Revoke revokes an API key by ID.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	id, errParseUint := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParseUint != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if errRevoke := h.store.RevokeAPIKey(c.Request.Context(), id, time.Now().UTC()); errRevoke != nil {
		if errors.Is(errRevoke, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
