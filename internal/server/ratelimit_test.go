package server

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	l := NewRateLimiter(0.001, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// Each client has its own bucket
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(0.001, 1)
	rejected := 0
	l.onReject = func() { rejected++ }

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/simulations", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5000").Code)

	rec := send("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many simulation requests")

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000").Code)
	assert.Equal(t, 1, rejected)
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "192.168.1.5:8080"
	assert.Equal(t, "192.168.1.5", clientKey(req))

	req.RemoteAddr = "192.168.1.5"
	assert.Equal(t, "192.168.1.5", clientKey(req))
}

// fakeClock is a settable time source for the limiter.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_SweepEvictsIdleClients(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(10, 5)
	l.now = clock.Now

	for i := 0; i < 3; i++ {
		l.Allow("idle-" + string(rune('a'+i)))
	}
	assert.Equal(t, 3, l.Clients())

	clock.Advance(DefaultLimiterIdleTTL - time.Second)
	l.Allow("active")
	assert.Equal(t, 0, l.Sweep(), "nothing is idle long enough yet")

	clock.Advance(2 * time.Second)
	assert.Equal(t, 3, l.Sweep())
	assert.Equal(t, 1, l.Clients())

	// An evicted client starts again with a full bucket
	assert.True(t, l.Allow("idle-a"))
	assert.Equal(t, 2, l.Clients())
}

func TestRateLimiter_IdleTTLCoversRefill(t *testing.T) {
	assert.Equal(t, DefaultLimiterIdleTTL, NewRateLimiter(2, 4).idleTTL)
	assert.Equal(t, 2000*time.Second, NewRateLimiter(0.001, 2).idleTTL)
}

func TestRateLimiter_StartSweeper(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(10, 5)
	l.now = clock.Now

	l.Allow("10.0.0.1")
	clock.Advance(time.Hour)

	stop := l.StartSweeper(time.Millisecond)
	defer stop()

	assert.Eventually(t, func() bool { return l.Clients() == 0 }, time.Second, 5*time.Millisecond)

	stop()
	stop()
}
