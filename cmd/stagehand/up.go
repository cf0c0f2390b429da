// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// newUpCommand returns the command that runs the full bootstrap
// pipeline.
func newUpCommand() cmd.Command {
	return &upCommand{}
}

type upCommand struct {
	cmd.CommandBase
	workspace  string
	configPath string
	noLaunch   bool
}

const upDoc = `
up runs the full bootstrap pipeline in the workspace: it ensures the
download staging directory exists, installs the dependency manifest,
and launches the worker process.

Each step must succeed before the next runs. The worker's stdio is
wired to the current terminal, interrupt and termination signals are
forwarded to it while it runs, and its exit code becomes stagehand's
own. Nothing is retried.

Running stagehand with no subcommand at all is equivalent to "stagehand up".
`

const upExamples = `
    stagehand
    stagehand up
    stagehand up --workspace /srv/worker
    stagehand up --no-launch
`

// Info implements Command.
func (c *upCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "up",
		Purpose:  "Prepare the workspace and launch the worker.",
		Doc:      upDoc,
		Examples: upExamples,
		SeeAlso:  []string{"prepare", "install", "status"},
	}
}

// SetFlags implements Command.
func (c *upCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.workspace, "workspace", "", "workspace root (default $STAGEHAND_WORKSPACE or the current directory)")
	f.StringVar(&c.configPath, "config", "", "path to the stagehand configuration file")
	f.BoolVar(&c.noLaunch, "no-launch", false, "stop after the dependency install")
}

// Init implements Command.
func (c *upCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements Command.
func (c *upCommand) Run(ctx *cmd.Context) error {
	p, err := newPipeline(c.workspace, c.configPath)
	if err != nil {
		return errors.Trace(err)
	}
	release, err := p.lock()
	if err != nil {
		return errors.Trace(err)
	}
	defer release()

	if err := p.preflightEnv(); err != nil {
		return errors.Trace(err)
	}
	if err := p.ensure(ctx); err != nil {
		return errors.Trace(err)
	}
	// Not traced: a passthrough return code must reach cmd.Main as is.
	if err := p.install(ctx); err != nil {
		return err
	}
	if c.noLaunch {
		fmt.Fprintln(ctx.Stdout, "Dependencies installed, not launching worker.")
		return nil
	}
	return p.launch(ctx)
}
