// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package output

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/xxii/internal/cachestore"
)

func testRows() []Row {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Row{
		{Key: "http://o/b.js", Status: 200, Type: "text/javascript", Size: 300, StoredAt: t0.Add(2 * time.Hour)},
		{Key: "http://o/", Status: 200, Type: "text/html", Size: 1200, StoredAt: t0},
		{Key: "http://o/old", Status: 301, Type: "", Size: 0, StoredAt: t0.Add(time.Hour)},
	}
}

func keys(rows []Row) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r.Key)
	}
	return out
}

func TestRows(t *testing.T) {
	rows := Rows([]cachestore.Record{{
		Key: "http://o/a.js",
		Response: &cachestore.Response{
			Status: 200,
			Header: http.Header{"Content-Type": {"text/javascript"}},
			Body:   []byte("abc"),
		},
	}})
	require.Len(t, rows, 1)
	assert.Equal(t, Row{Key: "http://o/a.js", Status: 200, Type: "text/javascript", Size: 3}, rows[0])
}

func TestSortRows(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		wantOrder []string
	}{
		{name: "by key", spec: "key", wantOrder: []string{"http://o/", "http://o/b.js", "http://o/old"}},
		{name: "by size descending", spec: "-size", wantOrder: []string{"http://o/", "http://o/b.js", "http://o/old"}},
		{name: "by stored", spec: "stored", wantOrder: []string{"http://o/", "http://o/old", "http://o/b.js"}},
		{name: "multiple fields", spec: "-status,key", wantOrder: []string{"http://o/old", "http://o/", "http://o/b.js"}},
		{name: "empty spec", spec: "", wantOrder: []string{"http://o/b.js", "http://o/", "http://o/old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := testRows()
			SortRows(rows, tt.spec)
			assert.Equal(t, tt.wantOrder, keys(rows))
		})
	}
}

func TestFilterRows(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{name: "status equals", spec: "status=301", want: []string{"http://o/old"}},
		{name: "status negated", spec: "status!=301", want: []string{"http://o/b.js", "http://o/"}},
		{name: "size greater", spec: "size>500", want: []string{"http://o/"}},
		{name: "type contains", spec: "type~JAVA", want: []string{"http://o/b.js"}},
		{name: "key prefix and status", spec: "key^http://o/o,status<400", want: []string{"http://o/old"}},
		{name: "invalid skipped", spec: "nonsense", want: []string{"http://o/b.js", "http://o/", "http://o/old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRows(testRows(), BuildFilters(tt.spec))
			assert.Equal(t, tt.want, keys(got))
		})
	}
}

func TestEntries_Formats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Entries(&buf, testRows(), Options{Format: "json", Sort: "key"}))

	var decoded []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "http://o/", decoded[0].Key)

	buf.Reset()
	require.NoError(t, Entries(&buf, testRows(), Options{Format: "yaml", Filter: "status=301"}))
	assert.Contains(t, buf.String(), "key: http://o/old")

	buf.Reset()
	require.NoError(t, Entries(&buf, testRows(), Options{Titles: true}))
	assert.Contains(t, buf.String(), "STATUS")
	assert.Contains(t, buf.String(), "http://o/b.js")
	assert.Contains(t, buf.String(), "1.2 kB")

	assert.Error(t, Entries(&buf, testRows(), Options{Format: "xml"}))
}
