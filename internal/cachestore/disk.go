// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
)

// Disk is a Storage rooted at a directory. Each cache is a subdirectory and
// each entry a file named by the MD5 of its key.
type Disk struct {
	base string
	now  func() time.Time
}

// DefaultDir resolves the base cache directory.
// Precedence:
//  1. dir, if non-empty (XXII_CACHE_DIR or --cache-dir)
//  2. os.UserCacheDir()/xxii
//
// Returns ("", false) if a base cannot be resolved.
func DefaultDir(dir string) (string, bool) {
	if dir != "" {
		return dir, true
	}
	if d, err := os.UserCacheDir(); err == nil && d != "" {
		return filepath.Join(d, "xxii"), true
	}
	return "", false
}

// NewDisk creates base if needed and returns a Storage rooted there.
func NewDisk(base string) (*Disk, error) {
	if base == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return &Disk{base: base, now: time.Now}, nil
}

// dir maps name to its directory. Names that would resolve to the base
// itself or outside of it are rejected.
func (d *Disk) dir(name string) (string, error) {
	if name == "" {
		return "", ErrNoName
	}
	escaped := url.PathEscape(name)
	if escaped == "." || escaped == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	dir := filepath.Join(d.base, escaped)
	rel, err := filepath.Rel(d.base, dir)
	if err != nil || rel != escaped || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return dir, nil
}

func (d *Disk) Open(ctx context.Context, name string) (Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := d.dir(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &diskCache{name: name, dir: dir, now: d.now}, nil
}

func (d *Disk) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	des, err := os.ReadDir(d.base)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var names []string
	for _, de := range des {
		if !de.IsDir() {
			continue
		}
		name, err := url.PathUnescape(de.Name())
		if err != nil {
			log.Debugf("skipping foreign directory %s", de.Name())
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *Disk) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, err := d.dir(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to remove cache %s: %w", name, err)
	}
	return true, nil
}

type diskCache struct {
	name string
	dir  string
	now  func() time.Time
}

func (c *diskCache) Name() string { return c.name }

func (c *diskCache) path(key string) string {
	return filepath.Join(c.dir, encodeKey(key))
}

func (c *diskCache) Match(ctx context.Context, req *http.Request) (*Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key, ok := matchKey(req)
	if !ok {
		return nil, false, nil
	}

	raw, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	stored, r, err := decodeEntry(raw)
	if err != nil {
		log.WithError(err).Warnf("ignoring cache entry for %s", key)
		return nil, false, nil
	}
	if stored != key {
		return nil, false, nil
	}
	return r, true, nil
}

func (c *diskCache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := putRecord(req, resp)
	if err != nil {
		return err
	}
	return c.PutAll(ctx, []Record{rec})
}

// PutAll stages every entry in a temp file first and renames them into place
// only when all writes succeeded. Entries being replaced are moved aside
// until every rename is done so a failed commit can restore them.
func (c *diskCache) PutAll(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRecords(records); err != nil {
		return err
	}

	now := c.now()
	staged := make([]string, 0, len(records))
	cleanup := func() {
		for _, p := range staged {
			_ = os.Remove(p)
		}
	}

	for _, r := range records {
		data, err := encodeEntry(r.Key, stamp(r.Response, now))
		if err != nil {
			cleanup()
			return err
		}
		p, err := writeTemp(c.dir, data)
		if err != nil {
			cleanup()
			return err
		}
		staged = append(staged, p)
	}

	var done []commit
	for i, r := range records {
		cm, err := c.commit(staged[i], c.path(r.Key))
		if err != nil {
			rollback(done)
			cleanup()
			return fmt.Errorf("failed to write to cache: %w", err)
		}
		done = append(done, cm)
	}

	for _, cm := range done {
		if cm.backup != "" {
			_ = os.Remove(cm.backup)
		}
	}
	return nil
}

// commit is one entry renamed into place. backup holds the previous entry,
// if there was one.
type commit struct {
	target string
	backup string
}

func (c *diskCache) commit(staged, target string) (commit, error) {
	cm := commit{target: target}

	info, err := os.Lstat(target)
	switch {
	case err == nil && !info.Mode().IsRegular():
		return cm, fmt.Errorf("%s is not a regular file", target)
	case err == nil:
		cm.backup = staged + ".bak"
		if err := os.Rename(target, cm.backup); err != nil {
			return cm, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return cm, err
	}

	if err := os.Rename(staged, target); err != nil {
		if cm.backup != "" {
			_ = os.Rename(cm.backup, target)
		}
		return cm, err
	}
	return cm, nil
}

// rollback undoes commits in reverse order, putting replaced entries back.
func rollback(done []commit) {
	for i := len(done) - 1; i >= 0; i-- {
		cm := done[i]
		if err := os.Remove(cm.target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Warnf("failed to roll back %s", cm.target)
			continue
		}
		if cm.backup != "" {
			if err := os.Rename(cm.backup, cm.target); err != nil {
				log.WithError(err).Warnf("failed to restore %s", cm.target)
			}
		}
	}
}

func (c *diskCache) Entries(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	des, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var out []Record
	for _, de := range des {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(c.dir, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read cache entry: %w", err)
		}
		key, r, err := decodeEntry(raw)
		if err != nil {
			log.WithError(err).Warnf("skipping cache file %s", de.Name())
			continue
		}
		out = append(out, Record{Key: key, Response: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to write to cache: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write to cache: %w", err)
	}
	return f.Name(), nil
}
