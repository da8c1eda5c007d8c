// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cachestore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetcherFunc func(*http.Request) (*http.Response, error)

func (f fetcherFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func assetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/a.js":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, "asset "+r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAddAll(t *testing.T) {
	ctx := context.Background()
	srv := assetServer(t)

	c, err := NewMemory().Open(ctx, "xxii")
	require.NoError(t, err)

	err = AddAll(ctx, c, srv.Client(), []string{srv.URL + "/", srv.URL + "/a.js"})
	require.NoError(t, err)

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, srv.URL+"/", entries[0].Key)
	assert.Equal(t, "asset /", string(entries[0].Response.Body))
	assert.Equal(t, srv.URL+"/a.js", entries[1].Key)
	assert.Equal(t, "asset /a.js", string(entries[1].Response.Body))
}

func TestAddAll_FailsAsAWhole(t *testing.T) {
	ctx := context.Background()
	srv := assetServer(t)

	c, err := NewMemory().Open(ctx, "xxii")
	require.NoError(t, err)

	err = AddAll(ctx, c, srv.Client(), []string{srv.URL + "/", srv.URL + "/missing.png"})
	assert.ErrorIs(t, err, ErrBadStatus)

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial manifest is stored")
}

func TestAddAll_NetworkError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	c, err := NewMemory().Open(ctx, "xxii")
	require.NoError(t, err)

	err = AddAll(ctx, c, fetcherFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}), []string{"http://origin.test/"})
	assert.ErrorIs(t, err, boom)

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshot_LeavesBodyReadable(t *testing.T) {
	srv := assetServer(t)
	resp, err := srv.Client().Get(srv.URL + "/a.js")
	require.NoError(t, err)

	snap, err := Snapshot(resp)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "asset /a.js", string(body))
	assert.Equal(t, body, snap.Body)
	assert.Equal(t, srv.URL+"/a.js", snap.URL)

	again, err := io.ReadAll(snap.HTTPResponse(nil).Body)
	require.NoError(t, err)
	assert.Equal(t, body, again)
}
