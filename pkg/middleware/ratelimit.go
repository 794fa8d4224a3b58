package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vaidashi/storefront-api/pkg/logger"
	"github.com/vaidashi/storefront-api/pkg/ratelimit"
)

// KeyFunc picks the bucket a request is charged to. An empty key falls back
// to the client IP.
type KeyFunc func(r *http.Request) string

// RateLimiterConfig configures the rate limiter middleware
type RateLimiterConfig struct {
	Burst             float64
	PerSecond         float64
	KeyFunc           KeyFunc
	TrustForwardedFor bool
	// OnLimited is called for every rejected request
	OnLimited func(r *http.Request)
}

// RateLimiterMiddleware applies a per-caller token bucket
type RateLimiterMiddleware struct {
	limiter           *ratelimit.KeyedLimiter
	keyFunc           KeyFunc
	trustForwardedFor bool
	onLimited         func(r *http.Request)
	logger            logger.Logger
}

// NewRateLimiterMiddleware creates a new rate limiter middleware
func NewRateLimiterMiddleware(cfg RateLimiterConfig, logger logger.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		limiter:           ratelimit.NewKeyedLimiter(cfg.Burst, cfg.PerSecond, 10*time.Minute),
		keyFunc:           cfg.KeyFunc,
		trustForwardedFor: cfg.TrustForwardedFor,
		onLimited:         cfg.OnLimited,
		logger:            logger,
	}
}

// Limiter exposes the underlying limiter so its sweeper can be run
func (m *RateLimiterMiddleware) Limiter() *ratelimit.KeyedLimiter {
	return m.limiter
}

// Middleware returns a middleware function
func (m *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if m.keyFunc != nil {
			key = m.keyFunc(r)
		}
		if key == "" {
			key = "ip:" + ClientIP(r, m.trustForwardedFor)
		}

		allowed, wait := m.limiter.Allow(key)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("Rate limit exceeded", "method", r.Method, "path", r.URL.Path, "key", key)
		if m.onLimited != nil {
			m.onLimited(r)
		}

		seconds := int(math.Ceil(wait.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "Too many requests. Please try again later.",
			"code":    "RateLimited",
		})
	})
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			// the first entry is the original client
			ips := strings.Split(forwardedFor, ",")
			return strings.TrimSpace(ips[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
