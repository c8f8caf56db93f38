package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultLimiterIdleTTL is how long a client's bucket is kept after its last request.
	DefaultLimiterIdleTTL = 10 * time.Minute
	// LimiterSweepInterval is how often idle buckets are evicted while serving.
	LimiterSweepInterval = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client address with a token bucket.
// Buckets of clients idle for longer than idleTTL are dropped by Sweep.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rps      float64 // Requests per second
	burst    int     // Burst capacity
	idleTTL  time.Duration
	now      func() time.Time
	onReject func()
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst for every client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rps,
		burst:   burst,
		idleTTL: idleTTL(rps, burst),
		now:     time.Now,
	}
}

// idleTTL keeps a bucket at least until it would have refilled, so eviction
// never hands a client more tokens than waiting would.
func idleTTL(rps float64, burst int) time.Duration {
	if rps <= 0 {
		return DefaultLimiterIdleTTL
	}
	refill := time.Duration(float64(burst) / rps * float64(time.Second))
	return max(DefaultLimiterIdleTTL, refill)
}

func (l *RateLimiter) getLimiter(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, exists := l.clients[client]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = l.now()
	return c.limiter
}

// Allow reports whether client may make a request now.
func (l *RateLimiter) Allow(client string) bool {
	return l.getLimiter(client).Allow()
}

// Clients returns the number of tracked client buckets.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Sweep drops the buckets of clients idle for longer than the idle TTL and
// returns how many were removed.
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for client, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, client)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until the returned stop func is
// called. stop is safe to call more than once.
func (l *RateLimiter) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
// It keys clients by RemoteAddr, so it belongs after middleware.RealIP.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			if l.onReject != nil {
				l.onReject()
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many simulation requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
