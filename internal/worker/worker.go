// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/apex/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/staranto/xxii/internal/cachestore"
	"github.com/staranto/xxii/internal/manifest"
)

// DefaultName is the cache name used when no base name is configured.
const DefaultName = "xxii"

var tracer = otel.Tracer("github.com/staranto/xxii/internal/worker")

// Name returns the cache name for base and an optional version tag.
func Name(base, version string) string {
	if base == "" {
		base = DefaultName
	}
	if version == "" {
		return base
	}
	return base + "-" + version
}

// Worker holds everything the install and fetch handlers depend on.
type Worker struct {
	Storage  cachestore.Storage
	Fetcher  cachestore.Fetcher
	Manifest manifest.Manifest
	// Origin is the absolute URL manifest paths are resolved against.
	Origin *url.URL

	// Base and Version make up the cache name, see Name.
	Base    string
	Version string

	WritePolicy WritePolicy
	// Prune deletes the caches of other versions after a successful install.
	Prune bool
}

func (w *Worker) CacheName() string {
	return Name(w.Base, w.Version)
}

// Install opens the cache and precaches every manifest asset. It returns
// only once the bulk insert has finished; if any asset cannot be fetched
// nothing is stored and the error is returned.
func (w *Worker) Install(ctx context.Context) (err error) {
	name := w.CacheName()
	ctx, span := tracer.Start(ctx, "worker.Install", trace.WithAttributes(
		attribute.String("cache.name", name),
		attribute.Int("manifest.size", w.Manifest.Len()),
	))
	defer func() { endSpan(span, err) }()

	urls, err := w.Manifest.Resolve(w.Origin)
	if err != nil {
		return err
	}

	cache, err := w.Storage.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to open cache %s: %w", name, err)
	}

	if err := cachestore.AddAll(ctx, cache, w.Fetcher, urls); err != nil {
		return fmt.Errorf("failed to precache %s: %w", name, err)
	}
	log.Infof("precached %d assets into %s", len(urls), name)

	if w.Prune {
		w.prune(ctx, name)
	}
	return nil
}

// prune removes caches sharing the base name but not the current version.
// Failures are logged; the install itself already succeeded.
func (w *Worker) prune(ctx context.Context, current string) {
	base := w.Base
	if base == "" {
		base = DefaultName
	}

	names, err := w.Storage.Keys(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to list caches for pruning")
		return
	}

	for _, n := range names {
		if n == current || (n != base && !strings.HasPrefix(n, base+"-")) {
			continue
		}
		if _, err := w.Storage.Delete(ctx, n); err != nil {
			log.WithError(err).Warnf("failed to delete stale cache %s", n)
			continue
		}
		log.Infof("deleted stale cache %s", n)
	}
}

// Fetch answers req from the cache when it can. Otherwise it performs the
// network request, stores a copy when the status is below 400, and returns
// the network response with its body unread. Network errors are returned
// as is; store errors follow WritePolicy.
func (w *Worker) Fetch(ctx context.Context, req *http.Request) (resp *http.Response, err error) {
	name := w.CacheName()
	ctx, span := tracer.Start(ctx, "worker.Fetch", trace.WithAttributes(
		attribute.String("cache.name", name),
		attribute.String("http.request.method", req.Method),
		attribute.String("url.full", req.URL.String()),
	))
	defer func() { endSpan(span, err) }()

	cache, err := w.Storage.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}

	cached, ok, err := cache.Match(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", req.URL, err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", ok))
	if ok {
		log.Debugf("cache hit: %s", req.URL)
		return cached.HTTPResponse(req), nil
	}

	resp, err = w.Fetcher.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest || !cacheable(req, resp) {
		return resp, nil
	}

	snap, err := cachestore.Snapshot(resp)
	if err != nil {
		return nil, err
	}

	if err := cache.Put(ctx, req, snap); err != nil {
		if w.WritePolicy == WriteFail {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("failed to cache %s: %w", req.URL, err)
		}
		log.WithError(err).Warnf("failed to cache %s", req.URL)
	}
	return resp, nil
}

// cacheable filters out what the store would refuse anyway, so those
// responses are neither buffered nor reported as write failures.
func cacheable(req *http.Request, resp *http.Response) bool {
	if _, err := cachestore.Key(req); errors.Is(err, cachestore.ErrMethodNotCacheable) {
		return false
	}
	return resp.StatusCode != http.StatusPartialContent
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
