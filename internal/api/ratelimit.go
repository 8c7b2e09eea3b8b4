package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit is a token bucket per client: Burst requests at once,
// refilled at RPS.
type RateLimit struct {
	RPS   float64
	Burst int
}

func (l RateLimit) enabled() bool { return l.RPS > 0 && l.Burst > 0 }

// IPRateLimiter keeps one limiter per client address. Idle entries are
// dropped by the sweep in Allow.
type IPRateLimiter struct {
	limit RateLimit
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(limit RateLimit) *IPRateLimiter {
	return &IPRateLimiter{
		limit:   limit,
		idle:    time.Hour,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether key may proceed and, if not, how long until a
// token is available.
func (l *IPRateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.idle {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > l.idle {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.limit.RPS), l.limit.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware answers 429 with Retry-After once a client runs out of tokens.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || !l.limit.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP keys limiters on the connection address. Forwarding headers only
// count when the router runs RealIP behind a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
