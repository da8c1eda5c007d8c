// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Response is a stored snapshot of an HTTP response.
type Response struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"-"`
	URL      string      `json:"url"`
	StoredAt time.Time   `json:"stored_at"`
}

// Snapshot copies resp so it can be stored. The body of resp can only be read
// once, so Snapshot drains and closes it and replaces it with an unread copy;
// the caller can still hand resp on untouched.
func Snapshot(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var u string
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL.String()
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   bytes.Clone(body),
		URL:    u,
	}, nil
}

// HTTPResponse builds a fresh *http.Response from the snapshot. Each call
// returns an independent body.
func (r *Response) HTTPResponse(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status)),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// Clone returns a deep copy.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	c.Body = bytes.Clone(r.Body)
	return &c
}

// stamp returns a copy of r with StoredAt set when it is zero.
func stamp(r *Response, now time.Time) *Response {
	c := r.Clone()
	if c.StoredAt.IsZero() {
		c.StoredAt = now.UTC()
	}
	return c
}
