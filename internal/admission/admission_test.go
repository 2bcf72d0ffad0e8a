package admission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/config"
	"github.com/fitcore/aigateway/internal/kv"
	"github.com/fitcore/aigateway/internal/ratelimit"
)

func newTestMiddleware(t *testing.T) (*Middleware, *collaborators.MemoryTokenVerifier) {
	t.Helper()
	store := kv.NewInMemoryStore(time.Hour)
	failOpen := kv.NewFailOpen(store)
	quotas := config.DefaultConfig().Quotas
	quotas.Free.Expensive = config.QuotaLimits{HourlyLimit: 600, PerMinuteLimit: 1}
	limiter := ratelimit.New(failOpen, quotas, nil, nil)
	verifier := collaborators.NewMemoryTokenVerifier()
	return New(verifier, limiter, nil, nil, nil), verifier
}

// TestExemptPathIssuesZeroKVOperations mirrors §8 property 6 / Scenario F:
// an exempt path bypasses C2 entirely.
func TestExemptPathIssuesZeroKVOperations(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	failOpen := kv.NewFailOpen(store)
	limiter := ratelimit.New(failOpen, config.DefaultConfig().Quotas, nil, nil)
	mw := New(nil, limiter, nil, nil, nil)

	handlerCalled := false
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10000; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.True(t, handlerCalled)
	assert.Equal(t, 0, failOpen.ConsecutiveFailures())
	status := limiter.Status(context.Background(), "ip:192.0.2.1:1234", collaborators.ClassExempt, collaborators.TierFree)
	assert.Equal(t, 0, status.Minute.Used)
	assert.Equal(t, 0, status.Hourly.Used)
}

func TestDeniedRequestNeverInvokesHandler(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	handlerCalled := false
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/coach/ask", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req) // 1st: allowed
	require.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	handlerCalled = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req) // 2nd within same minute: denied
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, handlerCalled)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestIPFallbackWhenTokenInvalid(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/coach/ask", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 70.41.3.18")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "free", rec.Header().Get("X-RateLimit-Tier"))
}

func TestValidTokenUsesVerifiedPrincipal(t *testing.T) {
	mw, verifier := newTestMiddleware(t)
	verifier.Register("tok-premium", collaborators.Principal{Subject: "user-7", Tier: collaborators.TierPremium})

	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/coach/ask", nil)
	req.Header.Set("Authorization", "Bearer tok-premium")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "premium", rec.Header().Get("X-RateLimit-Tier"))
}
