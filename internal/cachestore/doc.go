// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package cachestore defines the named cache storage that the offline worker
// reads and writes, and provides memory, disk, SQLite and S3 backed
// implementations of it.
package cachestore
