// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"
	"github.com/kballard/go-shellquote"

	"github.com/stagehand/stagehand/config"
	"github.com/stagehand/stagehand/installer"
	"github.com/stagehand/stagehand/launcher"
	"github.com/stagehand/stagehand/manifest"
	"github.com/stagehand/stagehand/osenv"
	"github.com/stagehand/stagehand/workspace"
)

// pipeline assembles the configuration, workspace and step
// implementations shared by the up, prepare and install commands.
type pipeline struct {
	config    *config.Config
	workspace *workspace.Workspace
}

// newPipeline resolves the workspace root and loads its configuration.
// The root comes from the --workspace flag, then the environment, then
// the current directory; the configuration file likewise from flag,
// environment, then the workspace default.
func newPipeline(workspaceFlag, configFlag string) (*pipeline, error) {
	root := workspaceFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Trace(err)
		}
		root = osenv.Workspace(cwd)
	}
	configPath := configFlag
	if configPath == "" {
		configPath = os.Getenv(osenv.ConfigEnvKey)
	}
	cfg, err := config.Load(configPath, root)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ws, err := workspace.New(workspace.Params{
		Root:         cfg.WorkspaceRoot(),
		DownloadsDir: cfg.DownloadsDir(),
		LogDir:       cfg.LogDir(),
		Clock:        clock.WallClock,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	setupFileLogging(cfg.LogDir())
	return &pipeline{config: cfg, workspace: ws}, nil
}

// setupFileLogging mirrors console logging into a rotating file when a
// log directory is configured. Failure to do so never fails the run.
func setupFileLogging(logDir string) {
	if logDir == "" {
		return
	}
	ljLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "stagehand.log"),
		MaxSize:    10,
		MaxBackups: 2,
		Compress:   true,
	}
	logger.Debugf("created rotating log file %q with max size %d MB and max backups %d",
		ljLogger.Filename, ljLogger.MaxSize, ljLogger.MaxBackups)
	if err := loggo.DefaultContext().AddWriter(
		"file", loggo.NewSimpleWriter(ljLogger, loggo.DefaultFormatter)); err != nil {
		logger.Warningf("unable to configure file logging: %v", err)
	}
}

// lock takes the cross-process workspace lock, so that two stagehand
// invocations never interleave their steps in one workspace.
func (p *pipeline) lock() (func(), error) {
	releaser, err := p.workspace.Lock(nil, p.config.LockTimeout())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return releaser.Release, nil
}

// preflightEnv verifies the configured environment variables are set
// before any step runs. Only the names of missing variables are
// reported; values never reach output or logs.
func (p *pipeline) preflightEnv() error {
	missing := set.NewStrings()
	for _, name := range p.config.RequireEnv() {
		if os.Getenv(name) == "" {
			missing.Add(name)
		}
	}
	if missing.IsEmpty() {
		return nil
	}
	return errors.Errorf("required environment variables not set: %s",
		strings.Join(missing.SortedValues(), ", "))
}

// ensure is step 1: create the workspace directories, leaving any
// existing contents untouched.
func (p *pipeline) ensure(ctx *cmd.Context) error {
	fmt.Fprintf(ctx.Stdout, "Step 1/3: ensuring download directory %s\n", p.workspace.DownloadsDir())
	return errors.Trace(p.workspace.Ensure())
}

// install is step 2: run the dependency installer on the manifest,
// optionally preceded by the system package preflight. A nonzero
// installer exit aborts the run and passes the code through.
func (p *pipeline) install(ctx *cmd.Context) error {
	cfg := p.config
	fmt.Fprintf(ctx.Stdout, "Step 2/3: installing dependencies from %s\n", cfg.Manifest())
	if cfg.EnsureSystemPackages() {
		if err := installer.EnsureSystemPackages(cfg.SystemPackages(), ctx.Stdout, ctx.Stderr); err != nil {
			return rcFromInstall(err)
		}
	}
	m, err := manifest.Open(cfg.Manifest())
	if err != nil {
		return errors.Trace(err)
	}
	inst, err := installer.New(installer.Params{
		Manifest: m.Path(),
		WorkDir:  p.workspace.Root(),
		Command:  cfg.Installer(),
		Stdout:   ctx.Stdout,
		Stderr:   ctx.Stderr,
	})
	if err != nil {
		return errors.Trace(err)
	}
	if err := inst.Install(); err != nil {
		return rcFromInstall(err)
	}
	p.writeRecord(m)
	return nil
}

// rcFromInstall converts an installer exit into the command's own
// return code; other install failures pass through unchanged.
func rcFromInstall(err error) error {
	if code, ok := installer.InstallExitCode(err); ok {
		logger.Errorf("%v", err)
		return cmd.NewRcPassthroughError(code)
	}
	return errors.Trace(err)
}

// writeRecord is best effort; a failed record write never fails the
// install it describes.
func (p *pipeline) writeRecord(m *manifest.Manifest) {
	entries, err := m.Entries()
	if err != nil {
		logger.Warningf("cannot summarise manifest: %v", err)
		return
	}
	fingerprint, err := m.Fingerprint()
	if err != nil {
		logger.Warningf("cannot fingerprint manifest: %v", err)
		return
	}
	record := &workspace.Record{
		ManifestSHA256: fingerprint,
		InstalledAt:    time.Now().UTC(),
		Entries:        len(entries),
	}
	if err := p.workspace.WriteRecord(record); err != nil {
		logger.Warningf("cannot write install record: %v", err)
	}
}

// launch is step 3: resolve the worker and run it to completion,
// forwarding interrupt and termination signals and passing its exit
// code through.
func (p *pipeline) launch(ctx *cmd.Context) error {
	worker, err := launcher.ResolveWorker(p.config)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(ctx.Stdout, "Step 3/3: launching worker %s\n", shellquote.Join(worker.Args...))
	l, err := launcher.New(launcher.Params{
		Worker: worker,
		Stdin:  ctx.Stdin,
		Stdout: ctx.Stdout,
		Stderr: ctx.Stderr,
	})
	if err != nil {
		return errors.Trace(err)
	}
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	code, err := l.Run(interrupts)
	if err != nil {
		return errors.Trace(err)
	}
	if code != 0 {
		return cmd.NewRcPassthroughError(code)
	}
	return nil
}
