// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package worker implements the offline cache handlers: Install precaches the
// manifest into a named cache, Fetch answers a request from that cache or
// from the network, storing successful network responses for next time.
//
// Both handlers take their storage and network access from the Worker value,
// so any host (the HTTP proxy, a test) can drive them.
package worker
