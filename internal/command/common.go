// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/urfave/cli/v3"

	"github.com/staranto/xxii/internal/aws"
	"github.com/staranto/xxii/internal/cachestore"
	"github.com/staranto/xxii/internal/config"
	"github.com/staranto/xxii/internal/manifest"
	"github.com/staranto/xxii/internal/meta"
	"github.com/staranto/xxii/internal/worker"
)

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// OpenStorage opens the storage selected by --store. The returned close
// function releases it and is never nil.
func OpenStorage(ctx context.Context, cmd *cli.Command) (cachestore.Storage, func() error, error) {
	noop := func() error { return nil }

	switch store := cmd.String("store"); store {
	case "memory":
		return cachestore.NewMemory(), noop, nil

	case "disk":
		dir, err := cacheDir(cmd)
		if err != nil {
			return nil, noop, err
		}
		d, err := cachestore.NewDisk(dir)
		if err != nil {
			return nil, noop, err
		}
		log.Debugf("disk store at %s", dir)
		return d, noop, nil

	case "sqlite":
		dir, err := cacheDir(cmd)
		if err != nil {
			return nil, noop, err
		}
		if _, err := cachestore.NewDisk(dir); err != nil {
			return nil, noop, err
		}
		path := filepath.Join(dir, "xxii.db")
		db, err := cachestore.OpenSQLite(path)
		if err != nil {
			return nil, noop, err
		}
		log.Debugf("sqlite store at %s", path)
		return db, db.Close, nil

	case "s3":
		client, err := aws.NewS3(ctx,
			aws.WithProfile(cmd.String("profile")),
			aws.WithRegion(cmd.String("region")),
			aws.WithEndpoint(cmd.String("endpoint")),
		)
		if err != nil {
			return nil, noop, err
		}
		s, err := cachestore.NewS3(client, cmd.String("bucket"), cmd.String("prefix"))
		if err != nil {
			return nil, noop, err
		}
		log.Debugf("s3 store at s3://%s/%s", cmd.String("bucket"), cmd.String("prefix"))
		return s, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store %q", store)
	}
}

// requirePersistent rejects the memory store for commands that only read or
// delete, since it starts empty on every run.
func requirePersistent(cmd *cli.Command) error {
	if cmd.String("store") == "memory" {
		return fmt.Errorf("%s needs a persistent store: disk, sqlite or s3", cmd.Name)
	}
	return nil
}

func cacheDir(cmd *cli.Command) (string, error) {
	dir, ok := cachestore.DefaultDir(cmd.String("cache-dir"))
	if !ok {
		return "", fmt.Errorf("cannot resolve a cache directory, set --cache-dir")
	}
	return dir, nil
}

// LoadManifest returns the manifest from the config file, or the built-in
// one when the config has none.
func LoadManifest() (manifest.Manifest, error) {
	paths, err := config.GetStringSlice("manifest", manifest.Default().Paths())
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("invalid manifest in config: %w", err)
	}
	return manifest.New(paths...)
}

// NewWorker builds the worker from the command's flags.
func NewWorker(cmd *cli.Command, storage cachestore.Storage) (*worker.Worker, error) {
	origin, err := url.Parse(cmd.String("origin"))
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}

	policy, err := worker.ParseWritePolicy(cmd.String("write-policy"))
	if err != nil {
		return nil, err
	}

	m, err := LoadManifest()
	if err != nil {
		return nil, err
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cmd.Duration("timeout")

	return &worker.Worker{
		Storage:     storage,
		Fetcher:     client,
		Manifest:    m,
		Origin:      origin,
		Base:        cmd.String("name"),
		Version:     cmd.String("version"),
		WritePolicy: policy,
		Prune:       cmd.Bool("prune"),
	}, nil
}

// stdout is where command results go.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return cmd.Writer
}

// CommandBuilder constructs a cli.Command for the subcommands using a
// consistent pattern: metadata wiring plus the flag groups it asks for.
type CommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (cb *CommandBuilder) Build() *cli.Command {
	return &cli.Command{
		Name:      cb.Name,
		Usage:     cb.Usage,
		UsageText: cb.UsageText,
		Metadata: map[string]any{
			"meta": cb.Meta,
		},
		Flags: cb.Flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			m := GetMeta(c)
			if len(m.Args) > 1 {
				log.Debugf("executing %v", m.Args[1:])
			}
			return ctx, nil
		},
		Action: cb.Action,
	}
}
