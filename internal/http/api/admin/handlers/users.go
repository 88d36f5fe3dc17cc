package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/db"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UserHandler manages uploader accounts.
type UserHandler struct {
	store SubjectStore
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(s SubjectStore) *UserHandler {
	return &UserHandler{store: s}
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	DiscordID      string `json:"discordId"`
	Username       string `json:"username"`
	InGamePlayerID string `json:"inGamePlayerId"`
	Tier           string `json:"tier"`
}

// Create registers a user on the requested tier, Free when omitted.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	discordID := strings.TrimSpace(body.DiscordID)
	if discordID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing discordId"})
		return
	}

	tier, errTier := resolveTier(c.Request.Context(), h.store, body.Tier, db.DefaultTierName)
	if errTier != nil {
		tierError(c, errTier)
		return
	}

	user := models.User{
		DiscordID:      discordID,
		Username:       strings.TrimSpace(body.Username),
		InGamePlayerID: strings.TrimSpace(body.InGamePlayerID),
		TierID:         tier.ID,
	}
	if errCreate := h.store.CreateUser(c.Request.Context(), &user); errCreate != nil {
		log.WithError(errCreate).WithField("discord_id", discordID).Warn("create user failed")
		createError(c, errCreate, "user")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":             user.ID,
		"discordId":      user.DiscordID,
		"username":       user.Username,
		"inGamePlayerId": user.InGamePlayerID,
		"tier":           tier.Name,
	})
}

// Delete soft-deletes a user.
func (h *UserHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if errDelete := h.store.SoftDeleteUser(c.Request.Context(), id, time.Now().UTC()); errDelete != nil {
		deleteError(c, errDelete, "user")
		return
	}
	c.Status(http.StatusNoContent)
}
