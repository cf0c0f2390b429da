// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package launcher resolves and runs the worker process. The worker is
// spawned, never exec-replaced, so the orchestrator stays alive to
// forward signals and to report the worker's exit code as its own.
package launcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("stagehand.launcher")

// execLookPath resolves executables against PATH; overloading point
// for tests.
var execLookPath = exec.LookPath

// WorkerConfig is the subset of the orchestrator configuration needed
// to resolve the worker process.
type WorkerConfig interface {
	// WorkspaceRoot returns the workspace root directory.
	WorkspaceRoot() string
	// Worker returns the explicit worker command, or nil.
	Worker() []string
	// Interpreters returns the interpreter executables tried, in
	// order, when no worker command is configured.
	Interpreters() []string
	// WorkerEntry returns the worker entry script path.
	WorkerEntry() string
	// WorkerEnv returns extra environment for the worker.
	WorkerEnv() map[string]string
}

// Worker is a resolved worker process: the executable to start, its
// full argument list, working directory, and extra environment.
type Worker struct {
	// Path is the resolved worker executable.
	Path string
	// Args is the full argument list, including Args[0].
	Args []string
	// Dir is the directory the worker runs in.
	Dir string
	// Env is extra environment appended to the orchestrator's own,
	// in KEY=VALUE form, sorted by key.
	Env []string
}

// ResolveWorker locates the worker process for the given
// configuration. An explicit worker command wins and is used as given;
// otherwise the entry script must exist in the workspace and the first
// configured interpreter found on PATH runs it. Failure to locate
// either returns an error satisfying IsLaunchError.
func ResolveWorker(cfg WorkerConfig) (*Worker, error) {
	worker := &Worker{
		Dir: cfg.WorkspaceRoot(),
		Env: environFrom(cfg.WorkerEnv()),
	}
	if command := cfg.Worker(); len(command) > 0 {
		path, err := execLookPath(command[0])
		if err != nil {
			return nil, &launchError{fmt.Sprintf("worker command %q not found", command[0])}
		}
		worker.Path = path
		worker.Args = append([]string{path}, command[1:]...)
		logger.Debugf("resolved worker %s", shellquote.Join(worker.Args...))
		return worker, nil
	}

	entry := cfg.WorkerEntry()
	if info, err := os.Stat(entry); err != nil || info.IsDir() {
		return nil, &launchError{fmt.Sprintf("worker entry %q not found", entry)}
	}
	var tried []string
	for _, interpreter := range cfg.Interpreters() {
		path, err := execLookPath(interpreter)
		if err != nil {
			tried = append(tried, interpreter)
			continue
		}
		worker.Path = path
		worker.Args = []string{path, entry}
		logger.Debugf("resolved worker %s", shellquote.Join(worker.Args...))
		return worker, nil
	}
	return nil, &launchError{fmt.Sprintf(
		"no worker interpreter found, tried %s", shellquote.Join(tried...))}
}

func environFrom(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	keys := set.NewStrings()
	for key := range extra {
		keys.Add(key)
	}
	var env []string
	for _, key := range keys.SortedValues() {
		env = append(env, key+"="+extra[key])
	}
	return env
}

// Params describes a worker launch.
type Params struct {
	// Worker is the resolved worker process.
	Worker *Worker
	// Stdin, Stdout and Stderr are wired straight through to the
	// worker. Stdin may be nil.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Validate returns an error if the params are not usable.
func (p Params) Validate() error {
	if p.Worker == nil {
		return errors.NotValidf("nil Worker")
	}
	if p.Worker.Path == "" || len(p.Worker.Args) == 0 {
		return errors.NotValidf("unresolved worker")
	}
	if p.Stdout == nil || p.Stderr == nil {
		return errors.NotValidf("nil output writers")
	}
	return nil
}

// Launcher runs a resolved worker to completion.
type Launcher struct {
	params Params
}

// New returns a Launcher for the given worker.
func New(p Params) (*Launcher, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Launcher{params: p}, nil
}

// Run starts the worker and waits for it to finish. Signals received
// on interrupts while the worker runs are forwarded to it; the
// orchestrator itself adds nothing to the worker's stdio. The int
// result is the worker's exit code, 128+signal if the worker died to
// a signal. A worker that cannot be started fails with an error
// satisfying IsLaunchError.
func (l *Launcher) Run(interrupts <-chan os.Signal) (int, error) {
	worker := l.params.Worker
	logger.Infof("starting worker %s", shellquote.Join(worker.Args...))

	cmd := exec.Command(worker.Path, worker.Args[1:]...)
	cmd.Dir = worker.Dir
	cmd.Env = append(os.Environ(), worker.Env...)
	cmd.Stdin = l.params.Stdin
	cmd.Stdout = l.params.Stdout
	cmd.Stderr = l.params.Stderr

	if err := cmd.Start(); err != nil {
		return 0, &launchError{fmt.Sprintf(
			"starting worker %s: %v", shellquote.Join(worker.Args...), err)}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	for {
		select {
		case sig := <-interrupts:
			logger.Infof("forwarding %v to worker", sig)
			if err := cmd.Process.Signal(sig); err != nil {
				logger.Warningf("cannot forward %v to worker: %v", sig, err)
			}
		case err := <-done:
			if err == nil {
				return 0, nil
			}
			exitError, ok := err.(*exec.ExitError)
			if !ok {
				return 0, errors.Annotate(err, "waiting for worker")
			}
			if status, ok := exitError.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				return 128 + int(status.Signal()), nil
			}
			return exitError.ExitCode(), nil
		}
	}
}

// launchError reports a worker that could not be located or started.
type launchError struct {
	message string
}

func (e *launchError) Error() string {
	return e.message
}

// IsLaunchError reports whether err means the worker could not be
// located or started.
func IsLaunchError(err error) bool {
	_, ok := errors.Cause(err).(*launchError)
	return ok
}
