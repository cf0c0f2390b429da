// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
)

// Main registers subcommands for the stagehand executable, and hands
// over control to the cmd package. This function is not redundant with
// main, because it provides an entry point for testing with arbitrary
// command line arguments.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return run(ctx, args[1:])
}

// run dispatches to the supercommand. Invoking stagehand with no
// arguments at all is the supported single-shot form and brings the
// workspace up.
func run(ctx *cmd.Context, args []string) int {
	if len(args) == 0 {
		args = []string{"up"}
	}
	return cmd.Main(newStagehandCommand(), ctx, args)
}

func main() {
	os.Exit(Main(os.Args))
}
