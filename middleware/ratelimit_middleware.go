package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/upb/manual-share/services/ratelimit"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// Limiter takes one token from the bucket named by the key parts
type Limiter interface {
	Allow(ctx context.Context, parts ...string) (*ratelimit.Decision, error)
}

// RateLimitMiddleware throttles unauthenticated and LLM backed endpoints per client IP
type RateLimitMiddleware struct {
	limiter Limiter
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. A nil limiter disables throttling.
func NewRateLimitMiddleware(limiter Limiter, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns a middleware charging the bucket of route for every request
func (m *RateLimitMiddleware) Limit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			decision, err := m.limiter.Allow(ctx, route, clientIP(r))
			if err != nil {
				// fail open
				m.logger.Warn("rate limiter unavailable",
					zap.String("request_id", requestID),
					zap.String("route", route),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				secs := int(math.Ceil(decision.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))

				m.logger.Warn("request blocked by rate limit",
					zap.String("request_id", requestID),
					zap.String("route", route))

				_ = utils.WriteTooManyRequests(w, "Rate limit exceeded", map[string]interface{}{
					"retry_after": secs,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr, which chi's RealIP middleware has already rewritten
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}
	return host
}
