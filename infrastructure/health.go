// infrastructure/health.go
package infrastructure

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler reports UP only when every probe passes.
func HealthHandler(checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "UP"}
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				body[hc.Name] = "error: " + err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			body[hc.Name] = "connected"
		}
		if status != http.StatusOK {
			body["status"] = "DOWN"
		}
		c.JSON(status, body)
	}
}
