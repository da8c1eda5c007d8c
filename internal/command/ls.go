// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"slices"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/xxii/internal/meta"
	"github.com/staranto/xxii/internal/output"
	"github.com/staranto/xxii/internal/worker"
)

// LsCommandAction lists the entries of one named store.
func LsCommandAction(ctx context.Context, cmd *cli.Command) error {
	if err := requirePersistent(cmd); err != nil {
		return err
	}

	storage, closer, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer(); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}()

	name := worker.Name(cmd.String("name"), cmd.String("version"))

	// Open would create the store, so look before touching it.
	keys, err := storage.Keys(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(keys, name) {
		return fmt.Errorf("store %s does not exist", name)
	}

	cache, err := storage.Open(ctx, name)
	if err != nil {
		return err
	}
	records, err := cache.Entries(ctx)
	if err != nil {
		return err
	}
	log.Debugf("%d entries in %s", len(records), name)

	return output.Entries(stdout(cmd), output.Rows(records), output.Options{
		Format: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Color:  cmd.Bool("color"),
		Titles: cmd.Bool("titles"),
	})
}

func LsCommandBuilder(meta meta.Meta) *cli.Command {
	path := meta.Config.Source
	flags := append(NewStorageFlags("ls", path), NewOutputFlags("ls", path)...)

	return (&CommandBuilder{
		Name:      "ls",
		Usage:     "list the entries of a store",
		UsageText: "xxii ls [--name NAME] [--version V] [options]",
		Flags:     flags,
		Action:    LsCommandAction,
		Meta:      meta,
	}).Build()
}
