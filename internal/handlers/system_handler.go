package handlers

import (
	"context"
	"net/http"
	"time"

	"datalens/internal/service"
	"datalens/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Pinger checks a backing dependency.
type Pinger func(ctx context.Context) error

type SystemHandler struct {
	service service.SystemService
	checks  map[string]Pinger
	version string
	log     *logger.Logger
}

func NewSystemHandler(service service.SystemService, checks map[string]Pinger, version string, log *logger.Logger) *SystemHandler {
	return &SystemHandler{service: service, checks: checks, version: version, log: log.With("handler", "SystemHandler")}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

// HealthCheck pings every dependency; any failure turns the reply into 503.
func (h *SystemHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Services:  map[string]string{"api": "running"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			h.log.Warn("health check failed", "dependency", name, "error", err)
			resp.Services[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "connected"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
