package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onllm-dev/claudewatch/internal/api"
	"github.com/onllm-dev/claudewatch/internal/poller"
)

type stubSource struct {
	snapshot api.Snapshot
}

func (s *stubSource) Fetch(context.Context) api.Snapshot { return s.snapshot }

func newTestServer(t *testing.T, token string) (*Server, *poller.Controller) {
	t.Helper()
	src := &stubSource{snapshot: api.OkSnapshot("org-1", api.Usage{SessionPercent: 42})}
	controller := poller.New(src, nil, time.Hour, nil)
	t.Cleanup(controller.Stop)

	auth, err := NewTokenAuth(token)
	require.NoError(t, err)
	return NewServer(controller, auth, 0, nil), controller
}

func TestServer_Healthz(t *testing.T) {
	server, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestServer_Status_NoSnapshotYet(t *testing.T) {
	server, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State    string        `json:"state"`
		Snapshot *api.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "stopped", resp.State)
	assert.Nil(t, resp.Snapshot)
}

func TestServer_Refresh_ReturnsFreshSnapshot(t *testing.T) {
	server, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State    string        `json:"state"`
		Snapshot *api.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp.State)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, api.StatusOK, resp.Snapshot.Status)
	assert.Equal(t, 42.0, resp.Snapshot.Usage.SessionPercent)
}

func TestServer_Status_AfterRefresh(t *testing.T) {
	server, controller := newTestServer(t, "")
	controller.RefreshNow(context.Background())

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var resp struct {
		Snapshot *api.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, "org-1", resp.Snapshot.OrganizationID)
}

func TestServer_BearerAuth(t *testing.T) {
	server, _ := newTestServer(t, "watch-token")

	// No credentials: rejected.
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token: rejected.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct token: allowed.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer watch-token")
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health check never needs credentials.
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenAuth(t *testing.T) {
	open, err := NewTokenAuth("")
	require.NoError(t, err)
	assert.False(t, open.Enabled())
	assert.True(t, open.Check("anything"))

	gated, err := NewTokenAuth("secret")
	require.NoError(t, err)
	assert.True(t, gated.Enabled())
	assert.True(t, gated.Check("secret"))
	assert.False(t, gated.Check("other"))
	assert.False(t, gated.Check(""))
}
