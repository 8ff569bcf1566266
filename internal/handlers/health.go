package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/harborstay/api/internal/platform/httpx"
	"github.com/harborstay/api/internal/repositories"
)

const readinessTimeout = 5 * time.Second

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	readiness   repositories.HealthRepository
	clock       func() time.Time
	startedAt   time.Time
	version     string
	environment string
}

// HealthOption customises the health handlers before construction.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs the probe handlers with the provided options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if h.startedAt.IsZero() {
		h.startedAt = h.clock()
	}
	return h
}

// WithHealthReadiness wires the repository used to verify downstream dependencies.
func WithHealthReadiness(readiness repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.readiness = readiness
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.clock = clock
	}
}

// WithHealthBuildInfo attaches version metadata to probe responses.
func WithHealthBuildInfo(version, environment string, startedAt time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
		h.environment = environment
		h.startedAt = startedAt
	}
}

// Healthz reports process liveness without touching downstream dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	payload := map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	if h.environment != "" {
		payload["environment"] = h.environment
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz verifies downstream dependencies before declaring the process ready.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.readiness != nil {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		defer cancel()
		if err := h.readiness.CheckReadiness(checkCtx); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("not_ready", "dependencies are not ready", http.StatusServiceUnavailable))
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}
