// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/xxii/internal/meta"
)

// InstallCommandAction precaches the manifest into the selected store.
func InstallCommandAction(ctx context.Context, cmd *cli.Command) error {
	storage, closer, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer(); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}()

	w, err := NewWorker(cmd, storage)
	if err != nil {
		return err
	}

	if err := w.Install(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout(cmd), "installed %d assets into %s\n", w.Manifest.Len(), w.CacheName())
	return nil
}

func InstallCommandBuilder(meta meta.Meta) *cli.Command {
	path := meta.Config.Source
	flags := append(NewStorageFlags("install", path), NewWorkerFlags("install", path)...)

	return (&CommandBuilder{
		Name:      "install",
		Usage:     "precache the manifest into a store",
		UsageText: "xxii install --origin URL [options]",
		Flags:     flags,
		Action:    InstallCommandAction,
		Meta:      meta,
	}).Build()
}
