package monitoring

import (
	"context"
	"sync"
	"time"

	"streamcast/internal/core/ports"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	probe    CheckFunc
	interval time.Duration
	timeout  time.Duration
}

type result struct {
	err error
	at  time.Time
}

// HealthStatus is the aggregate report served by the health endpoint.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker aggregates dependency probes. Background runs record
// their results, so the health endpoint can answer from a recent probe
// instead of hitting every dependency on each request.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []check
	last   map[string]result
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{last: make(map[string]result)}
}

func (h *HealthChecker) AddCheck(name string, probe CheckFunc, interval, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check{
		name:     name,
		probe:    probe,
		interval: interval,
		timeout:  timeout,
	})
}

// AddStoreCheck registers a recording store reachability probe.
func (h *HealthChecker) AddStoreCheck(store ports.RecordingStore, interval, timeout time.Duration) {
	h.AddCheck("store", store.Ping, interval, timeout)
}

// CheckAll reports the current state of every registered check. A
// result recorded within the check's interval is reused; anything
// staler is probed live.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, c := range h.snapshot() {
		err, ok := h.cached(c)
		if !ok {
			err = h.run(ctx, c)
		}
		if err != nil {
			status.Status = StatusUnhealthy
			status.Checks[c.name] = err.Error()
			continue
		}
		status.Checks[c.name] = StatusHealthy
	}
	return status
}

// StartBackgroundChecks probes every registered check on its interval
// until ctx is cancelled. Checks added afterwards only run on demand.
func (h *HealthChecker) StartBackgroundChecks(ctx context.Context) {
	for _, c := range h.snapshot() {
		go h.runPeriodically(ctx, c)
	}
}

func (h *HealthChecker) runPeriodically(ctx context.Context, c check) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.run(ctx, c)
		}
	}
}

func (h *HealthChecker) run(ctx context.Context, c check) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.probe(ctx)
	cancel()

	h.mu.Lock()
	h.last[c.name] = result{err: err, at: time.Now()}
	h.mu.Unlock()
	return err
}

func (h *HealthChecker) snapshot() []check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]check, len(h.checks))
	copy(out, h.checks)
	return out
}

func (h *HealthChecker) cached(c check) (error, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.last[c.name]
	if !ok || time.Since(r.at) > c.interval {
		return nil, false
	}
	return r.err, true
}
