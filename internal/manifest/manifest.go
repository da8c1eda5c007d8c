// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// defaultPaths are the application shell assets precached at install.
var defaultPaths = []string{
	"/",
	"/console.css",
	"/events.js",
	"/console.js",
	"/metacom.js",
	"/favicon.ico",
	"/favicon.png",
	"/xxii.png",
	"/xxii.svg",
}

var ErrEmpty = errors.New("manifest is empty")

// Manifest is an ordered, immutable list of root-relative asset paths.
type Manifest struct {
	paths []string
}

// Default returns the built-in application shell manifest.
func Default() Manifest {
	m, _ := New(defaultPaths...)
	return m
}

// New validates paths and returns a Manifest holding its own copy of them.
func New(paths ...string) (Manifest, error) {
	if len(paths) == 0 {
		return Manifest{}, ErrEmpty
	}

	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "/") {
			return Manifest{}, fmt.Errorf("manifest path %q is not root-relative", p)
		}
		// "//host/x" resolves against the scheme only, i.e. to another host.
		if strings.HasPrefix(p, "//") {
			return Manifest{}, fmt.Errorf("manifest path %q names a host", p)
		}
		if _, dup := seen[p]; dup {
			return Manifest{}, fmt.Errorf("manifest path %q is listed twice", p)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	return Manifest{paths: out}, nil
}

// Paths returns a copy of the manifest paths in order.
func (m Manifest) Paths() []string {
	return append([]string(nil), m.paths...)
}

func (m Manifest) Len() int {
	return len(m.paths)
}

// Resolve returns the absolute URL of every path against origin, in manifest
// order. Any path component of origin is replaced.
func (m Manifest) Resolve(origin *url.URL) ([]string, error) {
	if origin == nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin must be an absolute URL")
	}

	urls := make([]string, 0, len(m.paths))
	for _, p := range m.paths {
		ref, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("failed to parse manifest path %q: %w", p, err)
		}
		urls = append(urls, origin.ResolveReference(ref).String())
	}
	return urls, nil
}
