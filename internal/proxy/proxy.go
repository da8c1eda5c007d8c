// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/staranto/xxii/internal/worker"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler intercepts every request and answers it through the worker's
// fetch handler, with the request rewritten to target Origin.
type Handler struct {
	Worker *worker.Worker
	Origin *url.URL
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	out, err := h.outbound(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.Worker.Fetch(r.Context(), out)
	if err != nil {
		log.WithError(err).Warnf("%s %s failed", r.Method, r.URL)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for k, vv := range resp.Header {
		header[k] = append([]string(nil), vv...)
	}
	removeHopHeaders(header)

	w.WriteHeader(resp.StatusCode)
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		log.WithError(err).Debugf("%s %s: copy aborted after %d bytes", r.Method, r.URL, n)
		return
	}
	log.Debugf("%s %s %d %d %s", r.Method, r.URL, resp.StatusCode, n, time.Since(start))
}

// outbound builds the request sent to the worker. Accept-Encoding is dropped
// so the transport negotiates compression itself and cached bodies are
// stored decoded.
func (h *Handler) outbound(r *http.Request) (*http.Request, error) {
	u := *h.Origin
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	u.Fragment = ""

	out, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	out.Header = r.Header.Clone()
	out.ContentLength = r.ContentLength
	removeHopHeaders(out.Header)
	out.Header.Del("Accept-Encoding")

	return out, nil
}

func removeHopHeaders(h http.Header) {
	for _, f := range h.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// Serve runs handler on addr until ctx is cancelled, then shuts the server
// down gracefully. ready, when non-nil, receives the bound address.
func Serve(ctx context.Context, addr string, handler http.Handler, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	log.Infof("listening on %s", ln.Addr())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
