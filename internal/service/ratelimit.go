package service

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

// rateLimiter hands out one token bucket per client IP. Buckets refill at
// the configured per-minute rate and allow a burst of the same size.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	perMin  int
	maxIdle time.Duration
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*clientLimiter),
		perMin:  cfg.PerMinute,
		maxIdle: 10 * time.Minute,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.perMin)/60.0), rl.perMin),
		}
		rl.clients[ip] = cl
		rl.sweepLocked()
	}
	cl.seen = time.Now()
	return cl.limiter.Allow()
}

// sweepLocked drops buckets for clients that have gone quiet, keeping the map
// from growing without bound. Called with rl.mu held.
func (rl *rateLimiter) sweepLocked() {
	cutoff := time.Now().Add(-rl.maxIdle)
	for ip, cl := range rl.clients {
		if cl.seen.Before(cutoff) && !cl.seen.IsZero() {
			delete(rl.clients, ip)
		}
	}
}

// clientIP extracts the bucket key for a request. chi's RealIP middleware has
// already folded X-Forwarded-For into RemoteAddr when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
