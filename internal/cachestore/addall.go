// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
)

// Fetcher performs network requests. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// AddAll fetches every URL and stores the responses in c. The fetches run
// concurrently; if any of them fails or answers with a status outside 2xx,
// nothing is stored and the first error is returned.
func AddAll(ctx context.Context, c Cache, f Fetcher, urls []string) error {
	records := make([]Record, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, u, nil)
			if err != nil {
				return fmt.Errorf("failed to create request for %s: %w", u, err)
			}

			resp, err := f.Do(req)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", u, err)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				_ = resp.Body.Close()
				return fmt.Errorf("%w: %s returned %d", ErrBadStatus, u, resp.StatusCode)
			}

			snap, err := Snapshot(resp)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", u, err)
			}

			records[i] = Record{Key: KeyOf(req.URL), Response: snap}
			log.Debugf("fetched %s (%d, %d bytes)", u, snap.Status, len(snap.Body))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return c.PutAll(ctx, records)
}
