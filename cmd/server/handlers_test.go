package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/config"
	"github.com/fitcore/aigateway/internal/gateway"
	"github.com/fitcore/aigateway/internal/logging"
)

func newTestGateway(t *testing.T) (*gateway.Gateway, *collaborators.MemoryTokenVerifier) {
	t.Helper()
	idx := collaborators.NewMemorySearchIndex()
	verifier := collaborators.NewMemoryTokenVerifier()
	gw, err := gateway.New(config.DefaultConfig(), gateway.Collaborators{
		SearchIndex:   idx,
		TokenVerifier: verifier,
	})
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	return gw, verifier
}

func noopLogger() *logging.Logger {
	return &logging.Logger{Logger: zap.NewNop()}
}

func TestAdminRatelimitResetRequiresAdminTier(t *testing.T) {
	gw, verifier := newTestGateway(t)
	verifier.Register("tok-free", collaborators.Principal{Subject: "user-1", Tier: collaborators.TierFree})

	h := adminRatelimitResetHandler(gw, noopLogger())

	body := bytes.NewBufferString(`{"subject":"user-1","class":"general"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset", body)
	req.Header.Set("Authorization", "Bearer tok-free")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRatelimitResetSucceedsForAdminAndClearsCounters(t *testing.T) {
	gw, verifier := newTestGateway(t)
	verifier.Register("tok-admin", collaborators.Principal{Subject: "root", Tier: collaborators.TierAdmin})

	protected := gw.Admission().Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.RemoteAddr = "10.0.0.9:1"
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	before := gw.RateLimiter().Status(req.Context(), "ip:10.0.0.9:1", collaborators.ClassGeneral, collaborators.TierFree)
	require.Equal(t, 1, before.Minute.Used)

	h := adminRatelimitResetHandler(gw, noopLogger())
	body := bytes.NewBufferString(`{"subject":"ip:10.0.0.9:1","class":"general"}`)
	resetReq := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset", body)
	resetReq.Header.Set("Authorization", "Bearer tok-admin")
	resetRec := httptest.NewRecorder()
	h.ServeHTTP(resetRec, resetReq)
	require.Equal(t, http.StatusNoContent, resetRec.Code)

	after := gw.RateLimiter().Status(req.Context(), "ip:10.0.0.9:1", collaborators.ClassGeneral, collaborators.TierFree)
	assert.Equal(t, 0, after.Minute.Used)
	assert.Equal(t, 0, after.Hourly.Used)
}

func TestAdminRatelimitResetRejectsBadBody(t *testing.T) {
	gw, verifier := newTestGateway(t)
	verifier.Register("tok-admin", collaborators.Principal{Subject: "root", Tier: collaborators.TierAdmin})

	h := adminRatelimitResetHandler(gw, noopLogger())
	req := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer tok-admin")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
