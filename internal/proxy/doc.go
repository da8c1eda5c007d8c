// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package proxy is the HTTP host for the offline worker: it intercepts
// requests, hands them to the fetch handler and writes the answer back.
package proxy
