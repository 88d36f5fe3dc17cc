package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/quota"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// QuotaReader builds quota snapshots.
type QuotaReader interface {
	Snapshot(ctx context.Context, userID, groupID string, now time.Time) (*quota.Snapshot, error)
}

// QuotaHandler serves read-only quota status.
type QuotaHandler struct {
	ledger QuotaReader
}

// NewQuotaHandler constructs a QuotaHandler.
func NewQuotaHandler(ledger QuotaReader) *QuotaHandler {
	return &QuotaHandler{ledger: ledger}
}

// Get returns the remaining quota of a user and, optionally, a group.
func (h *QuotaHandler) Get(c *gin.Context) {
	parsedUser, errParse := uuid.Parse(strings.TrimSpace(c.Param("userId")))
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid user ID is required"})
		return
	}
	userID := parsedUser.String()
	groupID := strings.TrimSpace(c.Query("groupId"))
	if groupID != "" {
		parsedGroup, errGroup := uuid.Parse(groupID)
		if errGroup != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
			return
		}
		groupID = parsedGroup.String()
	}

	snap, errSnapshot := h.ledger.Snapshot(c.Request.Context(), userID, groupID, time.Now())
	if errSnapshot != nil {
		if errors.Is(errSnapshot, quota.ErrSubjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found or quota could not be retrieved"})
			return
		}
		log.WithError(errSnapshot).WithField("user_id", userID).Error("quota snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota lookup failed"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
