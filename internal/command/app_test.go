// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/xxii/internal/output"
)

// isolate keeps the developer's config and environment out of the run.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("APPDATA", "")
	t.Setenv("XXII_CFG", "")
	t.Setenv("XXII_STORE", "")
	t.Setenv("XXII_ORIGIN", "")
	t.Setenv("XXII_NAME", "")
	t.Setenv("XXII_VERSION", "")
}

func origin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("asset " + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append([]string{"xxii"}, args...)

	app, err := InitApp(context.Background(), args)
	require.NoError(t, err)

	var buf bytes.Buffer
	app.Writer = &buf
	app.ErrWriter = &buf

	err = app.Run(context.Background(), args)
	return buf.String(), err
}

func TestInitApp_Commands(t *testing.T) {
	isolate(t)

	app, err := InitApp(context.Background(), []string{"xxii"})
	require.NoError(t, err)

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"install", "serve", "ls", "stores", "completion"}, names)

	for _, c := range app.Commands {
		for i := 1; i < len(c.Flags); i++ {
			assert.LessOrEqual(t, c.Flags[i-1].Names()[0], c.Flags[i].Names()[0], "%s flags sorted", c.Name)
		}
	}
}

func TestInstallLsStores(t *testing.T) {
	isolate(t)
	srv := origin(t)
	dir := t.TempDir()

	out, err := run(t, "install", "--store", "disk", "--cache-dir", dir, "--origin", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "installed 9 assets into xxii")

	out, err = run(t, "ls", "--store", "disk", "--cache-dir", dir, "-o", "json")
	require.NoError(t, err)

	var rows []output.Row
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 9)
	for _, r := range rows {
		assert.Equal(t, http.StatusOK, r.Status)
		assert.True(t, strings.HasPrefix(r.Key, srv.URL+"/"), r.Key)
	}

	out, err = run(t, "ls", "--store", "disk", "--cache-dir", dir, "-o", "json", "--filter", "key~console.css")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 1)

	out, err = run(t, "stores", "--store", "disk", "--cache-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "xxii\n", out)
}

func TestInstall_VersionedAndPrune(t *testing.T) {
	isolate(t)
	srv := origin(t)
	dir := t.TempDir()

	_, err := run(t, "install", "--store", "sqlite", "--cache-dir", dir, "--origin", srv.URL, "--version", "1")
	require.NoError(t, err)
	_, err = run(t, "install", "--store", "sqlite", "--cache-dir", dir, "--origin", srv.URL, "--version", "2", "--prune")
	require.NoError(t, err)

	out, err := run(t, "stores", "--store", "sqlite", "--cache-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "xxii-2\n", out)

	out, err = run(t, "stores", "--store", "sqlite", "--cache-dir", dir, "--delete", "xxii-2")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted xxii-2")

	_, err = run(t, "stores", "--store", "sqlite", "--cache-dir", dir, "--delete", "xxii-2")
	assert.Error(t, err)
}

func TestInstall_OriginDown(t *testing.T) {
	isolate(t)
	srv := origin(t)
	url := srv.URL
	srv.Close()
	dir := t.TempDir()

	_, err := run(t, "install", "--store", "disk", "--cache-dir", dir, "--origin", url, "--timeout", "2s")
	require.Error(t, err)

	out, err := run(t, "ls", "--store", "disk", "--cache-dir", dir, "-o", "json")
	require.NoError(t, err)

	var rows []output.Row
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Empty(t, rows, "failed install stores nothing")
}

func TestLs_MissingStore(t *testing.T) {
	isolate(t)

	_, err := run(t, "ls", "--store", "disk", "--cache-dir", t.TempDir(), "--name", "nope")
	assert.ErrorContains(t, err, "does not exist")
}

func TestMemoryStoreIsRejected(t *testing.T) {
	isolate(t)

	for _, args := range [][]string{
		{"ls", "--store", "memory"},
		{"stores", "--store", "memory"},
		{"stores", "--store", "memory", "--delete", "xxii"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := run(t, args...)
			assert.ErrorContains(t, err, "persistent store")
		})
	}
}

func TestInstall_Validation(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"missing origin", []string{"install", "--store", "disk", "--cache-dir", dir}},
		{"relative origin", []string{"install", "--cache-dir", dir, "--origin", "/app"}},
		{"bad store", []string{"install", "--store", "tape", "--origin", "http://x"}},
		{"bad policy", []string{"install", "--cache-dir", dir, "--origin", "http://x", "--write-policy", "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCompletion(t *testing.T) {
	isolate(t)

	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "complete -F _xxii xxii")

	out, err = run(t, "completion", "zsh")
	require.NoError(t, err)
	assert.Contains(t, out, "#compdef xxii")
}
