// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local Storage. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	caches map[string]*memoryCache
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		caches: make(map[string]*memoryCache),
		now:    time.Now,
	}
}

func (m *Memory) Open(ctx context.Context, name string) (Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrNoName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[name]
	if !ok {
		c = &memoryCache{
			name:    name,
			entries: make(map[string]*Response),
			now:     m.now,
		}
		m.caches[name] = c
	}
	return c, nil
}

func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.caches[name]
	delete(m.caches, name)
	return ok, nil
}

type memoryCache struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Response
	now     func() time.Time
}

func (c *memoryCache) Name() string { return c.name }

func (c *memoryCache) Match(ctx context.Context, req *http.Request) (*Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key, ok := matchKey(req)
	if !ok {
		return nil, false, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (c *memoryCache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := putRecord(req, resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[rec.Key] = stamp(rec.Response, c.now())
	return nil
}

func (c *memoryCache) PutAll(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRecords(records); err != nil {
		return err
	}

	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		c.entries[r.Key] = stamp(r.Response, now)
	}
	return nil
}

func (c *memoryCache) Entries(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Record, 0, len(c.entries))
	for k, r := range c.entries {
		out = append(out, Record{Key: k, Response: r.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
