package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/wonny/quantengine/internal/api/response"
	"github.com/wonny/quantengine/internal/infra/database/postgres"
)

// HealthCheck 의존성 점검 함수 (nil = 정상)
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	startTime time.Time
	version   string

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		checks:    make(map[string]HealthCheck),
	}
}

// AddCheck registers a readiness check
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// DatabaseCheck adapts the pool health report
func DatabaseCheck(pool *postgres.Pool) HealthCheck {
	return func(ctx context.Context) error {
		if status := pool.Health(ctx); status.Status == "unhealthy" {
			return errors.New(status.Error)
		}
		return nil
	}
}

// SimpleHealthResponse represents a simple health check response
type SimpleHealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReadyResponse represents a readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// Health returns simple liveness check
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, SimpleHealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
	})
}

// Ready returns readiness check with dependency checks
// GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(names))
	message := ""
	for _, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		if err := check(ctx); err != nil {
			checks[name] = "error"
			if message == "" {
				message = name + ": " + err.Error()
			}
			continue
		}
		checks[name] = "ok"
	}

	resp := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}
	status := http.StatusOK
	if message != "" {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp)
}
