// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/xxii/internal/meta"
	"github.com/staranto/xxii/internal/proxy"
)

// DefaultListen is the address serve binds to when --listen is not given.
const DefaultListen = "127.0.0.1:8022"

// ServeCommandAction installs the cache and then serves the caching proxy
// until interrupted.
func ServeCommandAction(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// A failed install leaves the proxy usable as a pass-through.
	if err := w.Install(ctx); err != nil {
		if cmd.Bool("strict") {
			return err
		}
		log.WithError(err).Warnf("install of %s failed, serving from the network", w.CacheName())
	}

	origin, _ := url.Parse(cmd.String("origin"))
	handler := &proxy.Handler{Worker: w, Origin: origin}

	ready := make(chan string, 1)
	go func() {
		select {
		case addr := <-ready:
			fmt.Fprintf(stdout(cmd), "serving %s on http://%s\n", w.CacheName(), addr)
		case <-ctx.Done():
		}
	}()

	return proxy.Serve(ctx, cmd.String("listen"), handler, ready)
}

func ServeCommandBuilder(meta meta.Meta) *cli.Command {
	path := meta.Config.Source
	flags := append(NewStorageFlags("serve", path), NewWorkerFlags("serve", path)...)
	flags = append(flags,
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "address the proxy listens on",
			Sources: chain("XXII_LISTEN", "serve", path, "listen"),
			Value:   DefaultListen,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.BoolFlag{
			Name:    "strict",
			Usage:   "exit when the install fails instead of serving from the network",
			Sources: chain("XXII_STRICT", "serve", path, "strict"),
		},
	)

	return (&CommandBuilder{
		Name:      "serve",
		Usage:     "precache, then run the caching proxy",
		UsageText: "xxii serve --origin URL [--listen ADDR] [options]",
		Flags:     flags,
		Action:    ServeCommandAction,
		Meta:      meta,
	}).Build()
}
