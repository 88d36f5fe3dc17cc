package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/apexgirl/reportanalyzer/internal/analysis"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SubmissionReader loads submissions.
type SubmissionReader interface {
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
}

// SubmissionHandler exposes upload status.
type SubmissionHandler struct {
	store SubmissionReader
}

// NewSubmissionHandler constructs a SubmissionHandler.
func NewSubmissionHandler(s SubmissionReader) *SubmissionHandler {
	return &SubmissionHandler{store: s}
}

// Get returns one upload with its result when present.
func (h *SubmissionHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing upload id"})
		return
	}
	sub, errFind := h.store.GetSubmission(c.Request.Context(), id)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}
		log.WithError(errFind).WithField("upload_id", id).Error("load upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load upload failed"})
		return
	}

	out := gin.H{
		"uploadId":      sub.ID,
		"userId":        sub.UserID,
		"groupId":       sub.GroupID,
		"status":        sub.Status,
		"imageHash":     sub.ImageHash,
		"model":         sub.AnalysisModel,
		"promptVersion": sub.PromptVersion,
		"tokensUsed":    sub.TokenEstimate,
		"estimatedCost": sub.EstimatedCost,
		"createdAt":     sub.CreatedAt,
		"updatedAt":     sub.UpdatedAt,
	}
	if sub.FailureReason != "" {
		out["failureReason"] = sub.FailureReason
	}
	if report := analysis.FromSubmission(sub); report != nil {
		out["battleData"] = report
	}
	c.JSON(http.StatusOK, out)
}
