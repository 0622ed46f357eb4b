package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOne_ConditionalRequestUsesCache(t *testing.T) {
	var hits, conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(fixture))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "team", URL: srv.URL + "/team.ics?token=secret"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, fixture, string(first.Body))

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, fixture, string(second.Body))

	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 1, conditional.Load())
}

func TestFetchOne_FallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(fixture))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "team", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fail.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, fixture, string(res.Body))
}

func TestFetchOne_OversizedBodyIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixture))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := NewFetcher(dir)
	src := Source{ID: "team", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	f.maxBody = 16
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, fixture, string(res.Body))

	_, cached := f.readCache(f.cachePath(src.URL))
	assert.Equal(t, fixture, string(cached), "cache keeps the last complete body")

	uncached := NewFetcher("")
	uncached.maxBody = 16
	_, err = uncached.FetchOne(context.Background(), src)
	assert.ErrorContains(t, err, "larger than 16 bytes")
}

func TestFetchOne_NoCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := NewFetcher("")
	_, err := f.FetchOne(context.Background(), Source{ID: "x", URL: srv.URL})
	assert.Error(t, err)

	_, err = f.FetchOne(context.Background(), Source{ID: "empty"})
	assert.Error(t, err)
}

func TestFetchAll_ReportsFailuresPerSource(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixture))
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	f := NewFetcher(t.TempDir()).WithClient(ok.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "good", URL: ok.URL},
		{ID: "missing", URL: bad.URL},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Source.ID)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "ics missing")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...", redactURL("https://calendar.example.com/private/abc.ics?token=1"))
	assert.Equal(t, "(redacted)", redactURL("not a url"))
}
