package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/weatherwes/weatherwes/internal/api/models"
	"github.com/weatherwes/weatherwes/internal/api/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	store     Pinger
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, store Pinger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		store:     store,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Not ready when the cache store is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	readiness := models.Readiness{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	storeCheck := models.DependencyCheck{Name: "store", Status: models.HealthStatusOK}
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			detail := err.Error()
			storeCheck.Status = models.HealthStatusFail
			storeCheck.Detail = &detail
			readiness.Status = models.HealthStatusFail
		}
	}
	readiness.Checks = append(readiness.Checks, storeCheck)

	status := http.StatusOK
	if readiness.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, readiness)
}
