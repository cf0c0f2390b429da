// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// newPrepareCommand returns the command that creates the workspace
// directories and nothing else.
func newPrepareCommand() cmd.Command {
	return &prepareCommand{}
}

type prepareCommand struct {
	cmd.CommandBase
	workspace  string
	configPath string
}

const prepareDoc = `
prepare creates the download staging directory (and the log directory,
when one is configured) in the workspace. It is idempotent: existing
directories and their contents are left exactly as they are. A path
that already exists as a regular file is an error.

No dependencies are installed and no worker is launched.
`

// Info implements Command.
func (c *prepareCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "prepare",
		Purpose: "Create the workspace directories.",
		Doc:     prepareDoc,
		SeeAlso: []string{"up", "install"},
	}
}

// SetFlags implements Command.
func (c *prepareCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.workspace, "workspace", "", "workspace root (default $STAGEHAND_WORKSPACE or the current directory)")
	f.StringVar(&c.configPath, "config", "", "path to the stagehand configuration file")
}

// Init implements Command.
func (c *prepareCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements Command.
func (c *prepareCommand) Run(ctx *cmd.Context) error {
	p, err := newPipeline(c.workspace, c.configPath)
	if err != nil {
		return errors.Trace(err)
	}
	release, err := p.lock()
	if err != nil {
		return errors.Trace(err)
	}
	defer release()
	return errors.Trace(p.ensure(ctx))
}
