package middleware

import (
	"net/http"
	"sync"
	"time"

	"streamcast/pkg/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitorLimits hands out one token bucket per client IP and evicts
// buckets that have gone quiet, so a churn of one-shot clients cannot
// grow the map without bound.
type visitorLimits struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	maxIdle   time.Duration
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newVisitorLimits(r rate.Limit, burst int, maxIdle time.Duration) *visitorLimits {
	return &visitorLimits{
		visitors:  make(map[string]*visitor),
		rate:      r,
		burst:     burst,
		maxIdle:   maxIdle,
		lastSweep: time.Now(),
	}
}

func (v *visitorLimits) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if time.Since(v.lastSweep) > v.maxIdle {
		for addr, vis := range v.visitors {
			if time.Since(vis.lastSeen) > v.maxIdle {
				delete(v.visitors, addr)
			}
		}
		v.lastSweep = time.Now()
	}

	vis, ok := v.visitors[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.rate, v.burst)}
		v.visitors[ip] = vis
	}
	vis.lastSeen = time.Now()
	return vis.limiter.Allow()
}

// NewHTTPRateLimitMiddleware throttles the REST surface per client IP,
// with an optional cap on concurrently served requests. The signaling
// endpoint is not routed through it; a long-lived websocket is not a
// request burst.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limits := newVisitorLimits(
		rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond),
		cfg.RateLimiting.HTTP.Burst,
		3*time.Minute,
	)

	var inFlight chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		inFlight = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		if inFlight != nil {
			select {
			case inFlight <- struct{}{}:
				defer func() { <-inFlight }()
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error": "too many concurrent requests",
				})
				return
			}
		}

		if !limits.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
