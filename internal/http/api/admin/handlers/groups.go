package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GroupHandler manages community groups.
type GroupHandler struct {
	store SubjectStore
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(s SubjectStore) *GroupHandler {
	return &GroupHandler{store: s}
}

type createGroupRequest struct {
	ExternalID      string `json:"externalId"`
	Name            string `json:"name"`
	OwnerExternalID string `json:"ownerExternalId"`
	Tier            string `json:"tier"`
}

// Create registers a group. Without a tier the group has no pooled limit.
func (h *GroupHandler) Create(c *gin.Context) {
	var body createGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	externalID := strings.TrimSpace(body.ExternalID)
	if externalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing externalId"})
		return
	}

	group := models.Group{
		ExternalID:      externalID,
		Name:            strings.TrimSpace(body.Name),
		OwnerExternalID: strings.TrimSpace(body.OwnerExternalID),
	}
	tierName := ""
	tier, errTier := resolveTier(c.Request.Context(), h.store, body.Tier, "")
	if errTier != nil {
		tierError(c, errTier)
		return
	}
	if tier != nil {
		group.TierID = &tier.ID
		tierName = tier.Name
	}

	if errCreate := h.store.CreateGroup(c.Request.Context(), &group); errCreate != nil {
		log.WithError(errCreate).WithField("external_id", externalID).Warn("create group failed")
		createError(c, errCreate, "group")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":              group.ID,
		"externalId":      group.ExternalID,
		"name":            group.Name,
		"ownerExternalId": group.OwnerExternalID,
		"tier":            tierName,
	})
}

// Delete soft-deletes a group.
func (h *GroupHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if errDelete := h.store.SoftDeleteGroup(c.Request.Context(), id, time.Now().UTC()); errDelete != nil {
		deleteError(c, errDelete, "group")
		return
	}
	c.Status(http.StatusNoContent)
}
