package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything with a connectivity check: the pgx pool, the cache, the artifact store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check endpoints
type HealthHandlers struct {
	checks  map[string]Pinger
	version string
	started time.Time
}

func NewHealthHandlers(version string, db, cache, storage Pinger) *HealthHandlers {
	checks := map[string]Pinger{"database": db}
	if cache != nil {
		checks["redis"] = cache
	}
	if storage != nil {
		checks["storage"] = storage
	}
	return &HealthHandlers{checks: checks, version: version, started: time.Now()}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

func (h *HealthHandlers) run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			out[name] = "unhealthy"
			healthy = false
			continue
		}
		out[name] = "healthy"
	}
	return out, healthy
}

// HealthCheck handles GET /health. Degraded dependencies still answer 200.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	services, healthy := h.run(c.Request().Context())
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, &HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	})
}

// ReadinessCheck handles GET /health/ready
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	services, healthy := h.run(c.Request().Context())
	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"services": services,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"services": services,
	})
}

// LivenessCheck handles GET /health/live
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
