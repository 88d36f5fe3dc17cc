package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apexgirl/reportanalyzer/internal/submission"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Processor runs uploads through the pipeline.
type Processor interface {
	Process(ctx context.Context, req submission.Request) *submission.Response
}

// UploadHandler accepts battle report screenshots.
type UploadHandler struct {
	processor Processor
	maxBytes  int64
}

// NewUploadHandler constructs an UploadHandler.
func NewUploadHandler(processor Processor, maxBytes int64) *UploadHandler {
	return &UploadHandler{processor: processor, maxBytes: maxBytes}
}

// Upload processes one multipart screenshot upload.
func (h *UploadHandler) Upload(c *gin.Context) {
	parsedUser, errParse := uuid.Parse(strings.TrimSpace(c.PostForm("userId")))
	if errParse != nil {
		badRequest(c, "Valid user ID is required")
		return
	}
	userID := parsedUser.String()

	header, errFile := c.FormFile("image")
	if errFile != nil || header.Size == 0 {
		badRequest(c, "No image provided")
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		badRequest(c, fmt.Sprintf("Image too large (max %dMB)", h.maxBytes>>20))
		return
	}
	file, errOpen := header.Open()
	if errOpen != nil {
		badRequest(c, "No image provided")
		return
	}
	defer func() { _ = file.Close() }()

	limit := h.maxBytes
	if limit <= 0 {
		limit = header.Size
	}
	image, errRead := io.ReadAll(io.LimitReader(file, limit+1))
	if errRead != nil {
		badRequest(c, "No image provided")
		return
	}
	if int64(len(image)) > limit {
		badRequest(c, fmt.Sprintf("Image too large (max %dMB)", h.maxBytes>>20))
		return
	}
	contentType := http.DetectContentType(image)
	if contentType != "image/png" && contentType != "image/jpeg" {
		badRequest(c, "Only PNG and JPEG images are allowed")
		return
	}

	resp := h.processor.Process(c.Request.Context(), submission.Request{
		UserID:           userID,
		GroupID:          c.PostForm("groupId"),
		Image:            image,
		ContentType:      contentType,
		PrimaryInGameID:  c.PostForm("primaryInGameId"),
		OpposingInGameID: c.PostForm("opposingInGameId"),
		ChannelID:        c.PostForm("channelId"),
		MessageID:        c.PostForm("messageId"),
	})
	c.JSON(StatusFor(resp), resp)
}

// StatusFor maps a processing response to its HTTP status.
func StatusFor(resp *submission.Response) int {
	if resp == nil {
		return http.StatusInternalServerError
	}
	if resp.Success {
		return http.StatusOK
	}
	switch resp.ErrorKind {
	case submission.KindSubjectNotFound:
		return http.StatusNotFound
	case submission.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case submission.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case submission.KindGatewayError:
		return http.StatusBadGateway
	case submission.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, &submission.Response{
		Success:      false,
		ErrorKind:    submission.KindBadRequest,
		ErrorMessage: message,
	})
}
