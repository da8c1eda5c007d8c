// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/xxii/internal/cachestore"
	"github.com/staranto/xxii/internal/manifest"
	"github.com/staranto/xxii/internal/worker"
)

type origin struct {
	*httptest.Server
	hits atomic.Int32
	last atomic.Value
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		o.last.Store(r.Header.Clone())
		switch r.URL.Path {
		case "/", "/console.js":
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("Keep-Alive", "timeout=5")
			_, _ = io.WriteString(w, "page "+r.URL.RequestURI())
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(o.Close)
	return o
}

func newHandler(t *testing.T, o *origin) *Handler {
	t.Helper()
	u, err := url.Parse(o.URL)
	require.NoError(t, err)
	m, err := manifest.New("/")
	require.NoError(t, err)
	return &Handler{
		Origin: u,
		Worker: &worker.Worker{
			Storage:  cachestore.NewMemory(),
			Fetcher:  o.Client(),
			Manifest: m,
			Origin:   u,
		},
	}
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vv := range header {
		req.Header[k] = vv
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_MissThenHit(t *testing.T) {
	o := newOrigin(t)
	h := newHandler(t, o)

	rec := serve(h, http.MethodGet, "http://proxy.local/console.js?v=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page /console.js?v=1", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Keep-Alive"), "hop headers are dropped")
	assert.EqualValues(t, 1, o.hits.Load())

	rec = serve(h, http.MethodGet, "http://proxy.local/console.js?v=1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page /console.js?v=1", rec.Body.String())
	assert.EqualValues(t, 1, o.hits.Load(), "second request is served from cache")
}

func TestHandler_InstallThenOffline(t *testing.T) {
	o := newOrigin(t)
	h := newHandler(t, o)

	require.NoError(t, h.Worker.Install(context.Background()))
	o.Close()

	rec := serve(h, http.MethodGet, "http://proxy.local/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page /", rec.Body.String())

	rec = serve(h, http.MethodGet, "http://proxy.local/console.js", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code, "uncached request fails while offline")
}

func TestHandler_ErrorsAreNotCached(t *testing.T) {
	o := newOrigin(t)
	h := newHandler(t, o)

	for i := 0; i < 2; i++ {
		rec := serve(h, http.MethodGet, "http://proxy.local/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.EqualValues(t, 2, o.hits.Load())
}

func TestHandler_OutboundHeaders(t *testing.T) {
	o := newOrigin(t)
	h := newHandler(t, o)

	serve(h, http.MethodGet, "http://proxy.local/", http.Header{
		"Accept-Encoding": {"br"},
		"Connection":      {"X-Private"},
		"X-Private":       {"secret"},
		"X-Request-Id":    {"42"},
	})

	got, ok := o.last.Load().(http.Header)
	require.True(t, ok)
	assert.Empty(t, got.Get("X-Private"))
	assert.Equal(t, "42", got.Get("X-Request-Id"))
	assert.NotEqual(t, "br", got.Get("Accept-Encoding"))
}

func TestServe(t *testing.T) {
	o := newOrigin(t)
	h := newHandler(t, o)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", h, ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "page /", string(body))

	cancel()
	assert.NoError(t, <-done)
}
