// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/apex/log"
	"github.com/caarlos0/env/v11"
)

// Environment holds the process-level settings that come only from the
// environment.
type Environment struct {
	Log          string `env:"XXII_LOG" envDefault:"ERROR"`
	Config       string `env:"XXII_CFG"`
	CacheDir     string `env:"XXII_CACHE_DIR"`
	OtelEndpoint string `env:"XXII_OTEL_ENDPOINT"`
	OtelEnabled  bool   `env:"XXII_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Env parses the environment on every call so tests can use t.Setenv. A
// malformed value is logged and leaves the remaining defaults in place.
func Env() Environment {
	var e Environment
	if err := ParseEnv(&e); err != nil {
		log.WithError(err).Warn("ignoring malformed environment")
	}
	return e
}
