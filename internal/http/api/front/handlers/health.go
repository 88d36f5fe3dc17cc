package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports backing store health.
type Pinger func() error

// HealthHandler reports service liveness.
type HealthHandler struct {
	ping Pinger
}

// NewHealthHandler constructs a HealthHandler. ping may be nil.
func NewHealthHandler(ping Pinger) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// Health reports liveness together with database reachability.
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{
		"success":   true,
		"service":   "reportanalyzer",
		"timestamp": time.Now().UTC(),
	}
	if h.ping != nil {
		if errPing := h.ping(); errPing != nil {
			body["success"] = false
			body["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}
