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
)

// StoresCommandAction prints the store names, one per line. With --delete
// it removes the named store instead.
func StoresCommandAction(ctx context.Context, cmd *cli.Command) error {
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

	if target := cmd.String("delete"); target != "" {
		ok, err := storage.Delete(ctx, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store %s does not exist", target)
		}
		fmt.Fprintf(stdout(cmd), "deleted %s\n", target)
		return nil
	}

	keys, err := storage.Keys(ctx)
	if err != nil {
		return err
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintln(stdout(cmd), k)
	}
	return nil
}

func StoresCommandBuilder(meta meta.Meta) *cli.Command {
	path := meta.Config.Source
	flags := append(NewStorageFlags("stores", path),
		&cli.StringFlag{
			Name:    "delete",
			Aliases: []string{"d"},
			Usage:   "delete the named store",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
	)

	return (&CommandBuilder{
		Name:      "stores",
		Usage:     "list or delete the stores in the storage",
		UsageText: "xxii stores [--delete NAME] [options]",
		Flags:     flags,
		Action:    StoresCommandAction,
		Meta:      meta,
	}).Build()
}
