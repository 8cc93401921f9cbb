package api

import (
	"context"
	"net/http"
	"time"

	"github.com/orato/coach-engine/internal/transcribe"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Providers     []ProviderInfo    `json:"providers"`
}

// ProviderInfo describes one registered transcription backend.
type ProviderInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Priority int    `json:"priority"`
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionChecker reports whether an optional connection is up.
type ConnectionChecker interface {
	IsConnected() bool
}

type HealthHandler struct {
	db        HealthChecker
	notifier  ConnectionChecker
	registry  *transcribe.Registry
	version   string
	startTime time.Time
}

func NewHealthHandler(db HealthChecker, notifier ConnectionChecker, registry *transcribe.Registry, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		notifier:  notifier,
		registry:  registry,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.notifier != nil {
		if h.notifier.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	if h.registry.Len() == 0 {
		checks["providers"] = "none_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["providers"] = "ok"
	}

	providers := make([]ProviderInfo, 0, h.registry.Len())
	for _, d := range h.registry.Providers() {
		providers = append(providers, ProviderInfo{
			ID:       d.ID,
			Label:    d.Label,
			Kind:     string(d.Kind),
			Priority: d.Priority,
		})
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Providers:     providers,
	})
}
