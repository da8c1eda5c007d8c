// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

var (
	ErrMethodNotCacheable = errors.New("only GET requests can be cached")
	ErrPartialResponse    = errors.New("partial responses cannot be cached")
	ErrBadStatus          = errors.New("unexpected response status")
	ErrNoName             = errors.New("cache name is required")
	ErrBadName            = errors.New("invalid cache name")
)

// Storage is a set of caches addressed by name.
type Storage interface {
	// Open returns the cache called name, creating it when absent. Opening the
	// same name twice yields the same logical cache.
	Open(ctx context.Context, name string) (Cache, error)
	// Keys returns the names of every cache in the storage, sorted.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a cache and all of its entries. It reports whether the
	// cache existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Cache maps request descriptors to stored responses. Writes to one key are
// atomic and the last write wins.
type Cache interface {
	Name() string
	// Match returns the stored response for req, if any.
	Match(ctx context.Context, req *http.Request) (*Response, bool, error)
	// Put stores resp under req, overwriting any previous entry.
	Put(ctx context.Context, req *http.Request, resp *Response) error
	// PutAll stores every record or none of them.
	PutAll(ctx context.Context, records []Record) error
	// Entries lists the stored records ordered by key.
	Entries(ctx context.Context) ([]Record, error)
}

// Record is a single cache entry.
type Record struct {
	Key      string
	Response *Response
}

// Key returns the cache key for req: the URL without its fragment. Only GET
// requests have a key.
func Key(req *http.Request) (string, error) {
	if req == nil || req.URL == nil {
		return "", fmt.Errorf("request has no URL")
	}
	if req.Method != "" && req.Method != http.MethodGet {
		return "", ErrMethodNotCacheable
	}
	return KeyOf(req.URL), nil
}

// KeyOf returns the cache key for a URL.
func KeyOf(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// matchKey is Key for lookups: a request that cannot be cached is a miss,
// not an error.
func matchKey(req *http.Request) (string, bool) {
	k, err := Key(req)
	return k, err == nil
}

// putRecord validates a single insert.
func putRecord(req *http.Request, resp *Response) (Record, error) {
	k, err := Key(req)
	if err != nil {
		return Record{}, err
	}
	if err := checkResponse(resp); err != nil {
		return Record{}, err
	}
	return Record{Key: k, Response: resp}, nil
}

func checkResponse(resp *Response) error {
	if resp == nil {
		return fmt.Errorf("response is nil")
	}
	if resp.Status == http.StatusPartialContent {
		return ErrPartialResponse
	}
	return nil
}

func checkRecords(records []Record) error {
	for _, r := range records {
		if r.Key == "" {
			return fmt.Errorf("record has no key")
		}
		if err := checkResponse(r.Response); err != nil {
			return fmt.Errorf("record %s: %w", r.Key, err)
		}
	}
	return nil
}
