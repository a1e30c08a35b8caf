package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports the state of one dependency as a flat map with a "status" key.
type HealthCheck func(ctx context.Context) map[string]string

// PingCheck adapts a ping function to a HealthCheck.
func PingCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) map[string]string {
		if err := ping(ctx); err != nil {
			return map[string]string{"status": "down", "error": err.Error()}
		}
		return map[string]string{"status": "up"}
	}
}

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health answers 503 when any dependency is down.
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"service": "storefront-checkout", "status": "healthy"}

	for name, check := range h.checks {
		result := check(c.Request.Context())
		if result["status"] != "up" {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
		body[name] = result
	}
	c.JSON(status, body)
}
