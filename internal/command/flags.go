// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/xxii/internal/output"
	"github.com/staranto/xxii/internal/worker"
)

// configSources returns the namespaced and global config file sources for
// key. ns is the subcommand and path the config file.
func configSources(ns, path, key string) []cli.ValueSource {
	return []cli.ValueSource{
		yaml.YAML(ns+"."+key, altsrc.StringSourcer(path)),
		yaml.YAML(key, altsrc.StringSourcer(path)),
	}
}

// chain builds a source chain of an environment variable followed by the
// config file.
func chain(env, ns, path, key string) cli.ValueSourceChain {
	srcs := []cli.ValueSource{cli.EnvVar(env)}
	return cli.NewValueSourceChain(append(srcs, configSources(ns, path, key)...)...)
}

// NewStorageFlags are the flags that select and address the cache storage.
func NewStorageFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "cache storage: memory (install and serve only), disk, sqlite or s3",
			Sources: chain("XXII_STORE", ns, path, "store"),
			Value:   "disk",
			Validator: func(value string) error {
				return FlagValidators(value, StoreValidator)
			},
		},
		&cli.StringFlag{
			Name:    "cache-dir",
			Usage:   "base directory for the disk and sqlite stores",
			Sources: chain("XXII_CACHE_DIR", ns, path, "cache-dir"),
		},
		&cli.StringFlag{
			Name:    "bucket",
			Usage:   "S3 bucket for the s3 store",
			Sources: chain("XXII_BUCKET", ns, path, "bucket"),
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "key prefix inside the S3 bucket",
			Sources: chain("XXII_PREFIX", ns, path, "prefix"),
			Value:   "xxii",
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region for the s3 store",
			Sources: chain("AWS_REGION", ns, path, "region"),
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "AWS shared config profile for the s3 store",
			Sources: chain("AWS_PROFILE", ns, path, "profile"),
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "S3 compatible endpoint URL",
			Sources: chain("XXII_S3_ENDPOINT", ns, path, "endpoint"),
		},
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "base name of the cache",
			Sources: chain("XXII_NAME", ns, path, "name"),
			Value:   worker.DefaultName,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.StringFlag{
			Name:    "version",
			Usage:   "version tag appended to the cache name",
			Sources: chain("XXII_VERSION", ns, path, "version"),
		},
	}
}

// NewWorkerFlags are the flags that shape install and fetch behavior.
func NewWorkerFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "origin",
			Usage:    "origin URL of the application",
			Sources:  chain("XXII_ORIGIN", ns, path, "origin"),
			Required: true,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, OriginValidator)
			},
		},
		&cli.StringFlag{
			Name:    "write-policy",
			Usage:   "what to do when caching a response fails: ignore or fail",
			Sources: chain("XXII_WRITE_POLICY", ns, path, "write-policy"),
			Value:   worker.WriteIgnore.String(),
			Validator: func(value string) error {
				_, err := worker.ParseWritePolicy(value)
				return err
			},
		},
		&cli.BoolFlag{
			Name:    "prune",
			Usage:   "delete caches of other versions after install",
			Sources: chain("XXII_PRUNE", ns, path, "prune"),
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "network timeout per request",
			Sources: chain("XXII_TIMEOUT", ns, path, "timeout"),
			Value:   30 * time.Second, //nolint:mnd
		},
	}
}

// NewOutputFlags are the flags of listing commands.
func NewOutputFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(configSources(ns, path, "color")...),
			Value:   output.IsTerminal(),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters, e.g. status>299,type~css",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(configSources(ns, path, "output")...),
			Value:   "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of fields to sort by, prefix - to reverse",
			Sources: cli.NewValueSourceChain(configSources(ns, path, "sort")...),
			Value:   "key",
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(configSources(ns, path, "titles")...),
			Value:   true,
		},
	}
}
