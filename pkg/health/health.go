// Package health provides Kubernetes-style liveness and readiness probes.
//
// Registered checks run periodically in the background. Thresholds keep the
// reported state from flapping: a check turns unhealthy only after several
// consecutive failures and healthy again after a consecutive success streak.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

type check struct {
	name    string
	timeout time.Duration
	probe   CheckFunc

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	oks     int
}

func (c *check) run(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.probe(probeCtx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= defaultFailureThreshold {
			c.healthy = false
		}
		return
	}
	c.fails = 0
	c.oks++
	if c.oks >= defaultSuccessThreshold {
		c.healthy = true
	}
}

func (c *check) status() (healthy bool, lastErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy, c.lastErr
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	mu        sync.Mutex
	ready     bool
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health service. It starts not-ready; call SetReady(true)
// once initialization finishes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe of process health (goroutine leaks,
// deadlocks). Register all checks before Start.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, probe CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, probe))
}

// AddReadinessCheck registers a probe of traffic-serving ability (database
// connectivity, dependency availability).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, probe CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, probe))
}

func newCheck(name string, timeout time.Duration, probe CheckFunc) *check {
	// Assume healthy until proven otherwise.
	return &check{name: name, timeout: timeout, probe: probe, healthy: true}
}

// Start runs every registered check in its own goroutine at the given
// interval until Stop or context cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append(append([]*check{}, h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go func(c *check) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}(c)
	}
}

// Stop cancels the background check goroutines. Safe to call repeatedly.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	h.mu.Lock()
	ready := h.ready
	checks := h.readiness
	h.mu.Unlock()

	if !ready {
		return false
	}
	for _, c := range checks {
		if ok, _ := c.status(); !ok {
			return false
		}
	}
	return true
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 when all liveness checks pass, else 503
// with per-check failure messages.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	checks := append([]*check{}, h.liveness...)
	h.mu.Unlock()

	writeStatus(w, failures(checks))
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and all
// readiness checks pass, else 503 with details.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	ready := h.ready
	checks := append([]*check{}, h.readiness...)
	h.mu.Unlock()

	failed := failures(checks)
	if !ready {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

func failures(checks []*check) map[string]string {
	failed := make(map[string]string)
	for _, c := range checks {
		healthy, lastErr := c.status()
		if healthy {
			continue
		}
		if lastErr != nil {
			failed[c.name] = lastErr.Error()
		} else {
			failed[c.name] = "check is unhealthy"
		}
	}
	return failed
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failed}
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
