package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/db"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/store"
	"github.com/gin-gonic/gin"
)

// SubjectStore manages users, groups and the tiers they reference.
type SubjectStore interface {
	TierByName(ctx context.Context, name string) (*models.Tier, error)
	ListTiers(ctx context.Context) ([]models.Tier, error)
	CreateUser(ctx context.Context, user *models.User) error
	CreateGroup(ctx context.Context, group *models.Group) error
	SoftDeleteUser(ctx context.Context, id string, now time.Time) error
	SoftDeleteGroup(ctx context.Context, id string, now time.Time) error
}

// resolveTier picks a tier by numeric id or by name. Empty input selects fallback.
func resolveTier(ctx context.Context, s SubjectStore, ref, fallback string) (*models.Tier, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = fallback
	}
	if ref == "" {
		return nil, nil
	}
	if id, errParse := strconv.ParseUint(ref, 10, 64); errParse == nil {
		tiers, errList := s.ListTiers(ctx)
		if errList != nil {
			return nil, errList
		}
		for i := range tiers {
			if tiers[i].ID == id {
				return &tiers[i], nil
			}
		}
		return nil, store.ErrNotFound
	}
	return s.TierByName(ctx, ref)
}

func tierError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "load tier failed"})
}

func createError(c *gin.Context, err error, what string) {
	if db.IsUniqueViolation(err) {
		c.JSON(http.StatusConflict, gin.H{"error": what + " already exists"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "create " + what + " failed"})
}

func deleteError(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "delete " + what + " failed"})
}
