package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// rateLimited counts rejected requests per limiter name.
var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	},
	[]string{"limiter"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

const (
	bucketIdleTTL   = 10 * time.Minute
	sweepEveryCalls = 5000
)

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByShopOrIP buckets admin traffic by session shop, or by client IP
// before a session exists. Keys are prefixed so the namespaces never collide.
func KeyByShopOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := ShopFrom(c); s != "" {
			return "shop:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP buckets by client IP only. Storefront traffic is anonymous and the
// shop query parameter is caller-controlled, so it is not a safe key.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Idle buckets are
// swept every few thousand lookups. It is safe for concurrent use.
type RateLimiter struct {
	// Name labels http_rate_limited_total. Defaults to "default".
	Name string
	// Reject writes the response for a limited request. When nil the
	// standard 429 envelope with Retry-After: 1 is written. The storefront
	// widget sets it to answer {"active":false} instead.
	Reject gin.HandlerFunc
	// Clock drives bucket idleness; tests swap in a fake.
	Clock clockwork.Clock

	rps   rate.Limit
	burst int
	keyFn keyFunc
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		Name:    "default",
		Clock:   clockwork.NewRealClock(),
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		ttl:     bucketIdleTTL,
		buckets: make(map[string]*bucket),
	}
}

// limiterFor returns the bucket for key, creating it on first use. The
// sweep runs before the lookup so a stale bucket is replaced, not refreshed.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.Clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.calls++
	if rl.calls >= sweepEveryCalls {
		rl.calls = 0
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// IsRateBypass reports whether IdempotencyValidator exempted the request
// because it replays an already created timer.
func IsRateBypass(c *gin.Context) bool { return c.GetBool(ctxKeyRateBypass) }

// Handler enforces the limit. Replays skip it without spending a token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiterFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		rateLimited.WithLabelValues(rl.Name).Inc()
		if rl.Reject != nil {
			rl.Reject(c)
			c.Abort()
			return
		}
		c.Header("Retry-After", "1")
		abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}
