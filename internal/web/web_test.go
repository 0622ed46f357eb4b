package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timegate/internal/config"
	"timegate/internal/gate"
)

const officeSchedule = `
periods:
  - name: office
    description: staffed hours
    type: daily
    from: {hour: "09:00"}
    to: {hour: "17:00"}
  - name: maintenance
    type: weekly
    from: {day: saturday, hour: "23:00"}
    to: {day: sunday, hour: "07:00"}
`

func newTestServer(t *testing.T, auth *config.BasicAuthConfig) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(officeSchedule), 0o600))

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Schedule = path
	cfg.BasicAuth = auth
	loc, err := cfg.Location()
	require.NoError(t, err)

	g := gate.New(gate.FromConfig(cfg, loc))
	require.NoError(t, g.Reload(context.Background()))
	return NewServer(cfg, g).Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestContains(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, "/api/contains?at=2025-04-30T10:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	resp := decode[containsResponse](t, rec)
	assert.True(t, resp.Contains)
	require.Len(t, resp.Active, 1)
	assert.Equal(t, entryDTO{Name: "office", Description: "staffed hours", Period: "daily 09:00 - 17:00"}, resp.Active[0])

	rec = get(t, h, "/api/contains?at=2025-04-30T20:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[containsResponse](t, rec)
	assert.False(t, resp.Contains)
	assert.Empty(t, resp.Active)
	assert.Contains(t, rec.Body.String(), `"active":[]`)

	// Sunday 03:00 is inside the weekend maintenance window.
	resp = decode[containsResponse](t, get(t, h, "/api/contains?at=2025-04-27T03:00:00Z"))
	assert.True(t, resp.Contains)
	require.Len(t, resp.Active, 1)
	assert.Equal(t, "maintenance", resp.Active[0].Name)
}

func TestContains_DefaultsToNow(t *testing.T) {
	h := newTestServer(t, nil)
	rec := get(t, h, "/api/contains")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[containsResponse](t, rec)
	assert.False(t, resp.At.IsZero())
}

func TestContains_BadAt(t *testing.T) {
	h := newTestServer(t, nil)
	rec := get(t, h, "/api/contains?at=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid at")
}

func TestPeriods(t *testing.T) {
	h := newTestServer(t, nil)
	rec := get(t, h, "/api/periods")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[periodsResponse](t, rec)
	assert.Equal(t, "UTC", resp.Timezone)
	assert.False(t, resp.LoadedAt.IsZero())
	assert.Equal(t, []entryDTO{
		{Name: "office", Description: "staffed hours", Period: "daily 09:00 - 17:00"},
		{Name: "maintenance", Period: "weekly Saturday 23:00 - Sunday 07:00"},
	}, resp.Periods)
}

func TestWindows_Empty(t *testing.T) {
	h := newTestServer(t, nil)
	rec := get(t, h, "/api/windows")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"windows":[]}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contains", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, &config.BasicAuthConfig{Username: "ops", Password: "s3cret"})

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)

	rec := get(t, h, "/api/periods")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/periods", nil)
	req.SetBasicAuth("ops", "wrong!")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/periods", nil)
	req.SetBasicAuth("ops", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuth_EmptyCredentialsDisableAuth(t *testing.T) {
	h := newTestServer(t, &config.BasicAuthConfig{Username: "ops"})
	assert.Equal(t, http.StatusOK, get(t, h, "/api/periods").Code)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	s := NewServer(cfg, gate.New(gate.Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.ListenAndServe(ctx))
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, secureCompare("abc", "abc"))
	assert.False(t, secureCompare("abc", "abd"))
	assert.False(t, secureCompare("abc", "abcd"))
}
