package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/manual-share/services/ratelimit"
	"go.uber.org/zap"
)

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, parts ...string) (*ratelimit.Decision, error) {
	args := m.Called(parts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ratelimit.Decision), args.Error(1)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := zap.NewNop()

	t.Run("allowed request passes with headers", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("Allow", []string{"login", "192.0.2.1"}).
			Return(&ratelimit.Decision{Allowed: true, Limit: 20, Remaining: 19}, nil)

		handler := NewRateLimitMiddleware(limiter, logger).Limit("login")(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "20", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "19", w.Header().Get("X-RateLimit-Remaining"))
		limiter.AssertExpectations(t)
	})

	t.Run("exhausted bucket returns 429 with Retry-After", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("Allow", mock.Anything).
			Return(&ratelimit.Decision{Allowed: false, Limit: 20, RetryAfter: 2100 * time.Millisecond}, nil)

		handler := NewRateLimitMiddleware(limiter, logger).Limit("quiz-generate")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/quiz/generate", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "3", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("Allow", mock.Anything).Return(nil, errors.New("redis down"))

		handler := NewRateLimitMiddleware(limiter, logger).Limit("login")(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("nil limiter disables throttling", func(t *testing.T) {
		handler := NewRateLimitMiddleware(nil, logger).Limit("login")(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:443"
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.RemoteAddr = ""
	assert.Equal(t, "unknown", clientIP(req))
}
