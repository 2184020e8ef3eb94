package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureThreshold(t *testing.T) {
	c := newCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	ctx := context.Background()

	c.run(ctx)
	c.run(ctx)
	healthy, _ := c.status()
	assert.True(t, healthy, "two failures stay under the threshold")

	c.run(ctx)
	healthy, lastErr := c.status()
	assert.False(t, healthy, "third consecutive failure flips the state")
	assert.EqualError(t, lastErr, "connection refused")
}

func TestRecovery(t *testing.T) {
	fail := true
	c := newCheck("db", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})
	ctx := context.Background()

	for i := 0; i < defaultFailureThreshold; i++ {
		c.run(ctx)
	}
	healthy, _ := c.status()
	require.False(t, healthy)

	fail = false
	c.run(ctx)
	healthy, _ = c.status()
	assert.True(t, healthy, "one success restores health")
}

func TestReadyEndpoint(t *testing.T) {
	h := New()

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rec
	}

	rec := get()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready before SetReady")
	assert.Contains(t, rec.Body.String(), "service is not ready")

	h.SetReady(true)
	rec = get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestReadyEndpointWithFailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		return errors.New("no route to host")
	})

	// Drive the check past the failure threshold without Start.
	h.mu.Lock()
	c := h.readiness[0]
	h.mu.Unlock()
	for i := 0; i < defaultFailureThreshold; i++ {
		c.run(context.Background())
	}

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no route to host")
	assert.False(t, h.IsReady())
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartStop(t *testing.T) {
	h := New()
	ran := make(chan struct{}, 1)
	h.AddLivenessCheck("probe", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
}
