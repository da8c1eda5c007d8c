// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

var errCorrupt = errors.New("corrupt cache entry")

// entryMeta is the first line of a serialized entry. The body follows the
// newline verbatim.
type entryMeta struct {
	Key      string      `json:"key"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	URL      string      `json:"url"`
	StoredAt time.Time   `json:"stored_at"`
}

func encodeEntry(key string, r *Response) ([]byte, error) {
	meta, err := json.Marshal(entryMeta{
		Key:      key,
		Status:   r.Status,
		Header:   r.Header,
		URL:      r.URL,
		StoredAt: r.StoredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(meta) + 1 + len(r.Body))
	buf.Write(meta)
	buf.WriteByte('\n')
	buf.Write(r.Body)
	return buf.Bytes(), nil
}

func decodeEntry(raw []byte) (string, *Response, error) {
	line, body, ok := bytes.Cut(raw, []byte{'\n'})
	if !ok || !gjson.ValidBytes(line) {
		return "", nil, errCorrupt
	}

	meta := gjson.ParseBytes(line)
	key := meta.Get("key").String()
	if key == "" {
		return "", nil, errCorrupt
	}

	r := &Response{
		Status:   int(meta.Get("status").Int()),
		Header:   http.Header{},
		Body:     bytes.Clone(body),
		URL:      meta.Get("url").String(),
		StoredAt: meta.Get("stored_at").Time(),
	}
	meta.Get("header").ForEach(func(name, values gjson.Result) bool {
		for _, v := range values.Array() {
			r.Header[name.String()] = append(r.Header[name.String()], v.String())
		}
		return true
	})

	return key, r, nil
}

// encodeKey hashes k with MD5 and returns the hex string.
func encodeKey(k string) string {
	h := md5.New()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))
}
