package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus represents the health status of the ledger process.
type HealthStatus struct {
	Healthy   bool             `json:"healthy"`
	Ready     bool             `json:"ready"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Uptime    string           `json:"uptime"`
}

// Check represents an individual health check result.
type Check struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthCheckFunc performs one health check. A nil error is healthy.
type HealthCheckFunc func(ctx context.Context) error

// HealthChecker runs registered checks on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	ready     atomic.Bool
	startTime time.Time
}

// NewHealthChecker creates a health checker with no checks registered.
// It reports not ready until SetReady(true) is called.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		startTime: time.Now(),
	}
}

// RegisterCheck registers a health check under name, replacing any check
// with the same name.
func (h *HealthChecker) RegisterCheck(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetReady sets the ready state.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns true if the process is ready to serve.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// Check runs all health checks in name order.
func (h *HealthChecker) Check(ctx context.Context) *HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	status := &HealthStatus{
		Healthy:   true,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]Check, len(names)),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	for _, name := range names {
		c := Check{Name: name, Healthy: true}
		if err := checks[name](ctx); err != nil {
			c.Healthy = false
			c.Message = err.Error()
			if status.Healthy {
				status.Message = name + ": " + c.Message
			}
			status.Healthy = false
		}
		status.Checks[name] = c
	}
	status.Ready = status.Healthy && h.IsReady()

	return status
}
