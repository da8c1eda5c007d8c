// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/xxii/internal/config"
	"github.com/staranto/xxii/internal/meta"
)

func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	// The arg[1] immediately following the binary (arg[0]) is the xxii
	// subcommand and also represents the namespace key to be used when
	// retrieving config values. arg[1] could be -h/--help, so ignore it if it
	// appears to be a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	// A missing config file is normal; flags and env still apply.
	cfg, err := config.Load(ns)
	if err != nil {
		log.Debugf("no config loaded: %v", err)
	}

	meta := meta.Meta{
		Args:    args,
		Config:  cfg,
		Env:     config.Env(),
		Context: ctx,
	}

	app := &cli.Command{
		Name:  "xxii",
		Usage: "offline cache for web application assets",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "xxii version info",
				HideDefault: true,
				Local:       true,
			},
		},
	}

	app.Commands = append(app.Commands,
		InstallCommandBuilder(meta),
		ServeCommandBuilder(meta),
		LsCommandBuilder(meta),
		StoresCommandBuilder(meta),
		CompletionCommandBuilder(meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
