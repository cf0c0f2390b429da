// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// newInstallCommand returns the command that prepares the workspace
// and installs the dependency manifest without launching the worker.
func newInstallCommand() cmd.Command {
	return &installCommand{}
}

type installCommand struct {
	cmd.CommandBase
	workspace  string
	configPath string
}

const installDoc = `
install runs the first two bootstrap steps: it ensures the workspace
directories exist and then runs the dependency installer on the
manifest. The worker is never launched; a later "stagehand up" picks
up from a fully installed workspace.

A nonzero installer exit aborts the run and becomes stagehand's own
exit code.
`

// Info implements Command.
func (c *installCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "install",
		Purpose: "Install the dependency manifest into the workspace.",
		Doc:     installDoc,
		SeeAlso: []string{"up", "prepare", "status"},
	}
}

// SetFlags implements Command.
func (c *installCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.workspace, "workspace", "", "workspace root (default $STAGEHAND_WORKSPACE or the current directory)")
	f.StringVar(&c.configPath, "config", "", "path to the stagehand configuration file")
}

// Init implements Command.
func (c *installCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements Command.
func (c *installCommand) Run(ctx *cmd.Context) error {
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
	return p.install(ctx)
}
