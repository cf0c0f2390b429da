// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo"

	"github.com/stagehand/stagehand/osenv"
	"github.com/stagehand/stagehand/version"
)

func init() {
	// If the environment key is empty, ConfigureLoggers returns nil and does
	// nothing.
	err := loggo.ConfigureLoggers(os.Getenv(osenv.StartupLoggingConfigEnvKey))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR parsing %s: %s\n\n", osenv.StartupLoggingConfigEnvKey, err)
	}
}

var logger = loggo.GetLogger("stagehand.cmd")

var stagehandDoc = `
stagehand brings a worker checkout up in three steps: it ensures the
download staging directory exists, installs the dependency manifest
with pip, and launches the worker process with its stdio wired to the
current terminal.

The pipeline is fail-fast. A failed step aborts the run, the worker is
never launched after a failed install, and the worker's exit code
becomes stagehand's own.
`

// newStagehandCommand builds the stagehand supercommand with the
// default logging configuration taken from the environment and all
// subcommands registered.
func newStagehandCommand() cmd.Command {
	scmd := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:      "stagehand",
		Doc:       stagehandDoc,
		Log:       &cmd.Log{DefaultConfig: osenv.LoggingConfig()},
		Version:   version.Current.String(),
		NotifyRun: runNotifier,
	})
	scmd.Register(newUpCommand())
	scmd.Register(newPrepareCommand())
	scmd.Register(newInstallCommand())
	scmd.Register(newStatusCommand())
	return scmd
}

func runNotifier(name string) {
	logger.Infof("running %s [%s %s %s]", name, version.Current, runtime.Compiler, runtime.Version())
}
