package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pricepulse/internal/store"
)

func newTestServer(t *testing.T, ready func() bool) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0
	fake := store.NewFake()
	srv, err := NewServer(cfg, fake, ready)
	require.NoError(t, err)
	return srv
}

func TestHealthz_AlwaysOK(t *testing.T) {
	srv := newTestServer(t, func() bool { return false })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_ReportsReadyWhenProbeReports(t *testing.T) {
	srv := newTestServer(t, func() bool { return true })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_ReportsUnavailableWhenNotReady(t *testing.T) {
	srv := newTestServer(t, func() bool { return false })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
