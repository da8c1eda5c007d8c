// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/xxii/internal/command"
	"github.com/staranto/xxii/internal/config"
	mylog "github.com/staranto/xxii/internal/log"
	"github.com/staranto/xxii/internal/telemetry"
	"github.com/staranto/xxii/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	env := config.Env()
	mylog.InitLogger(env.Log)

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		// Short-circuit --version/-v. Only the root flag, subcommands have a
		// --version of their own.
		if args[1] == "--version" || args[1] == "-v" {
			fmt.Println(version.Version)
			return 0
		}
		args = mangleArguments(args)
	}

	shutdown, err := telemetry.Setup(ctx, env)
	if err != nil {
		log.WithError(err).Warn("telemetry disabled")
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.WithError(err).Debug("telemetry shutdown")
			}
		}()
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments splices a named argument set from the config file into
// args. "xxii install @prod" inserts the entries of install.prod; without an
// @set, install.defaults is used when present.
func mangleArguments(args []string) []string {
	// We know the first two args are going to be the executable and command.
	preamble := make([]string, 2)
	copy(preamble, args[:2])

	// Short-circuit for --help/-h.
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return append(preamble, "--help")
		}
	}

	if strings.HasPrefix(args[1], "-") {
		return args
	}

	// Config has to be loaded before InitApp to find the sets.
	if _, err := config.Load(args[1]); err != nil {
		log.Debugf("no argument sets: %v", err)
		return args
	}

	set := "defaults"
	rest := make([]string, 0, len(args)-2)
	for _, a := range args[2:] {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			set = a[1:]
			continue
		}
		rest = append(rest, a)
	}

	setArgs, _ := config.GetStringSlice(args[1] + "." + set)
	var inserted []string
	for _, arg := range setArgs {
		inserted = append(inserted, strings.Fields(arg)...)
	}

	out := append(preamble, inserted...) //nolint:gocritic
	out = append(out, rest...)

	log.Debugf("set=%s, args=%v", set, out)
	return out
}
