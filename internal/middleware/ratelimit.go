package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/framingham-risk-server/internal/domain"
)

// RateLimiter enforces a token bucket per client IP. Buckets live in a bounded LRU so
// a flood of distinct addresses cannot grow memory without limit.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter from configuration
func NewRateLimiter(cfg domain.RateLimitConfig) (*RateLimiter, error) {
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = 10000
	}
	clients, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(max(cfg.RequestsPerMinute, 1))),
		burst:   burst,
		clients: clients,
	}, nil
}

// Allow reports whether client may make a request now
func (r *RateLimiter) Allow(client string) bool {
	limiter, ok := r.clients.Get(client)
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		if prev, found, _ := r.clients.PeekOrAdd(client, limiter); found {
			limiter = prev
		}
	}
	return limiter.Allow()
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	return r.clients.Len()
}

// Middleware rejects requests over the limit with 429
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		retryAfter := time.Duration(float64(time.Second) / float64(r.limit))
		c.Header("Retry-After", strconv.Itoa(int(max(retryAfter.Seconds(), 1))))
		apiErr := domain.NewAPIError(domain.ErrRateLimit, "Too many requests", "", c.GetString(CorrelationIDKey))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, apiErr)
	}
}
