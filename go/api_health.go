package orderserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthAPI reports process liveness together with its dependency probes.
type HealthAPI struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthAPI creates a HealthAPI running checks on every request.
func NewHealthAPI(checks ...HealthCheck) HealthAPI {
	return HealthAPI{checks: checks, timeout: 2 * time.Second}
}

// Get /healthz
func (api *HealthAPI) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), api.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(api.checks))
	for _, check := range api.checks {
		if check.Check == nil {
			continue
		}
		if err := check.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[check.Name] = err.Error()
			continue
		}
		results[check.Name] = "ok"
	}
	body := gin.H{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
