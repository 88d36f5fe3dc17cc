package handlers

import (
	"context"
	"net/http"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/gin-gonic/gin"
)

// TierLister lists tiers with their limits.
type TierLister interface {
	ListTiers(ctx context.Context) ([]models.Tier, error)
}

// TierHandler serves the public tier catalogue.
type TierHandler struct {
	store TierLister
}

// NewTierHandler constructs a TierHandler.
func NewTierHandler(s TierLister) *TierHandler {
	return &TierHandler{store: s}
}

// List returns all tiers with their limits.
func (h *TierHandler) List(c *gin.Context) {
	tiers, errList := h.store.ListTiers(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tiers failed"})
		return
	}

	out := make([]gin.H, 0, len(tiers))
	for _, tier := range tiers {
		limits := make([]gin.H, 0, len(tier.Limits))
		for _, limit := range tier.Limits {
			limits = append(limits, gin.H{
				"scope":               limit.Scope,
				"dailyRequestLimit":   limit.DailyRequestLimit,
				"monthlyRequestLimit": limit.MonthlyRequestLimit,
			})
		}
		out = append(out, gin.H{
			"id":          tier.ID,
			"name":        tier.Name,
			"description": tier.Description,
			"limits":      limits,
		})
	}
	c.JSON(http.StatusOK, out)
}
