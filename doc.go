// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// xxii is the main package for the xxii command line tool. It precaches a
// web application's asset manifest into a named store and serves the assets
// cache-first through a local proxy.
package main
