package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/app"
)

type fakeStatus struct {
	stats app.Stats
	ready bool
}

func (f *fakeStatus) Stats() app.Stats { return f.stats }
func (f *fakeStatus) Ready() bool      { return f.ready }

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(&fakeStatus{}, zap.NewNop()), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReflectsHarvester(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{}
	server := NewServer(status, nil)

	rec := serve(t, server, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	status.ready = true
	rec = serve(t, server, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestStatsReturnsSnapshot(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{stats: app.Stats{SeenURLs: 4, SeenHashes: 2, QueuePending: 1}}
	rec := serve(t, NewServer(status, zap.NewNop()), "/v1/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got app.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, status.stats, got)
}

func TestStatsWithoutHarvester(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, zap.NewNop()), "/v1/stats")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "harvester unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStatus{}, zap.NewNop())
	serve(t, server, "/healthz")
	rec := serve(t, server, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(&fakeStatus{}, zap.NewNop()), "/v1/jobs")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewServer(&fakeStatus{ready: true}, zap.NewNop()).ListenAndServe(ctx, addr)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
