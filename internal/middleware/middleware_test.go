// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/recipes-api/internal/config"
	"github.com/carterperez-dev/recipes-api/internal/core"
)

type stubVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (s stubVerifier) VerifyAccessToken(context.Context, string) (*AccessTokenClaims, error) {
	return s.claims, s.err
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, GetUserID(r.Context())+"|"+GetUserRole(r.Context()))
}

func TestAuthenticator(t *testing.T) {
	valid := stubVerifier{claims: &AccessTokenClaims{UserID: "u1", Role: "user"}}

	tests := []struct {
		name     string
		verifier TokenVerifier
		header   string
		status   int
		code     string
	}{
		{"missing header", valid, "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", valid, "Token abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", stubVerifier{err: core.ErrTokenExpired}, "Bearer abc", http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"invalid", stubVerifier{err: core.ErrTokenInvalid}, "Bearer abc", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"ok", valid, "bearer abc", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Authenticator(tt.verifier)(http.HandlerFunc(echoUser))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Contains(t, rec.Body.String(), tt.code)
			} else {
				assert.Equal(t, "u1|user", rec.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(echoUser))

	for role, want := range map[string]int{
		"":      http.StatusUnauthorized,
		"user":  http.StatusForbidden,
		"admin": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req = req.WithContext(WithClaims(req.Context(), &AccessTokenClaims{UserID: "u", Role: role}))
		}
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("a", 500))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36)
}

func TestRecovererWritesEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestRateLimiterFallsBackToLocal(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRateLimiter(rdb, RateLimitConfig{
		Limit:      PerMinute(2, 2),
		KeyFunc:    KeyByUserAndEndpoint,
		FailOpen:   true,
		BypassFunc: BypassWebhooks,
	})
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("/v1/posts/3f1f6f2e-8f64-4d8e-9b59-0d0c5f4f6c11/like"))
	assert.Equal(t, http.StatusOK, hit("/v1/posts/0b0b8c8e-7d1b-4b77-9a8b-7ad44a1f5b10/like"))
	assert.Equal(t, http.StatusTooManyRequests, hit("/v1/posts/1f6d5a3c-2c55-4c1e-8d7a-5d9f0a8c4e21/like"))

	for range 5 {
		require.Equal(t, http.StatusOK, hit("/v1/webhooks/revenuecat"))
	}
}

func TestRateLimiterFailsClosedWithoutFallback(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewRateLimiter(rdb, RateLimitConfig{Limit: PerMinute(10, 10)}).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/premium/packages", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITER_UNAVAILABLE")
}

func TestLocalLimiterSweepsIdleBuckets(t *testing.T) {
	l := newLocalLimiter()
	limit := PerMinute(1, 1)

	assert.Equal(t, 1, l.allow("a", limit).Allowed)
	assert.Equal(t, 0, l.allow("a", limit).Allowed)

	l.buckets["a"].lastSeen = time.Now().Add(-2 * bucketIdleTTL)
	l.lastSweep = time.Now().Add(-2 * sweepInterval)

	res := l.allow("b", limit)
	assert.Equal(t, 1, res.Allowed)
	assert.NotContains(t, l.buckets, "a")
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "/v1/posts/{id}/like",
		normalizeEndpoint("/v1/posts/3f1f6f2e-8f64-4d8e-9b59-0d0c5f4f6c11/like"))
	assert.Equal(t, "/v1/recipes/{id}/save", normalizeEndpoint("/v1/recipes/42/save"))
	assert.Equal(t, "/v1/users/me", normalizeEndpoint("/v1/users/me"))
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins:   []string{"https://app.example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           60,
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/premium/packages", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
