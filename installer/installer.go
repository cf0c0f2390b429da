// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package installer runs the platform dependency installer against the
// workspace manifest. The manifest contents are opaque here: the file
// is handed to pip untouched, and pip's own exit status decides the
// outcome.
package installer

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/proxy"
	"github.com/kballard/go-shellquote"
)

var logger = loggo.GetLogger("stagehand.installer")

// osRunCommand calls cmd.Run, this is used as an overloading point so
// we can test what *would* be run without actually executing another
// program.
func osRunCommand(cmd *exec.Cmd) error {
	return cmd.Run()
}

var runCommand = osRunCommand

// execLookPath resolves executables against PATH; overloading point
// for tests.
var execLookPath = exec.LookPath

// discoveryOrder lists the installer commands tried, in order, when
// none is configured explicitly.
var discoveryOrder = [][]string{
	{"python3", "-m", "pip"},
	{"python", "-m", "pip"},
	{"pip3"},
	{"pip"},
}

// nonInteractiveEnv keeps pip from ever prompting on stdin.
var nonInteractiveEnv = []string{"PIP_NO_INPUT=1"}

// Params describes a dependency install.
type Params struct {
	// Manifest is the absolute path of the dependency manifest.
	Manifest string
	// WorkDir is the directory the installer runs in, normally the
	// workspace root.
	WorkDir string
	// Command is the explicit installer command, or nil to discover
	// one.
	Command []string
	// Stdout and Stderr receive the installer's output unmodified.
	Stdout io.Writer
	Stderr io.Writer
}

// Validate returns an error if the params are not usable.
func (p Params) Validate() error {
	if p.Manifest == "" {
		return errors.NotValidf("empty Manifest")
	}
	if p.WorkDir == "" {
		return errors.NotValidf("empty WorkDir")
	}
	if p.Stdout == nil || p.Stderr == nil {
		return errors.NotValidf("nil output writers")
	}
	return nil
}

// Installer invokes pip (or a configured equivalent) on the manifest.
type Installer struct {
	params  Params
	command []string
}

// New returns an Installer with its command resolved. A configured
// command whose executable cannot be found, or a discovery that finds
// no pip at all, fails with an error satisfying IsInstallError.
func New(p Params) (*Installer, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	command, err := resolveCommand(p.Command)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Installer{params: p, command: command}, nil
}

func resolveCommand(configured []string) ([]string, error) {
	if len(configured) > 0 {
		path, err := execLookPath(configured[0])
		if err != nil {
			return nil, &notAvailableError{tried: []string{configured[0]}}
		}
		return append([]string{path}, configured[1:]...), nil
	}
	var tried []string
	for _, candidate := range discoveryOrder {
		path, err := execLookPath(candidate[0])
		if err != nil {
			tried = append(tried, candidate[0])
			continue
		}
		logger.Debugf("discovered dependency installer %s", path)
		return append([]string{path}, candidate[1:]...), nil
	}
	return nil, &notAvailableError{tried: tried}
}

// Command returns the resolved installer command line.
func (i *Installer) Command() []string {
	return append([]string(nil), i.command...)
}

// Install runs the dependency install. The installer's stdout and
// stderr stream through to the configured writers; its environment is
// the orchestrator's own plus non-interactive and proxy settings. A
// nonzero exit fails with an error satisfying IsInstallError that
// carries the exit code.
func (i *Installer) Install() error {
	args := append(i.Command(), "install", "-r", i.params.Manifest)
	logger.Infof("running %s", shellquote.Join(args...))

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = i.params.WorkDir
	cmd.Env = installEnv()
	cmd.Stdout = i.params.Stdout
	cmd.Stderr = i.params.Stderr

	err := runCommand(cmd)
	if err == nil {
		return nil
	}
	if exitError, ok := err.(*exec.ExitError); ok {
		return &installError{
			command: shellquote.Join(args...),
			code:    exitError.ExitCode(),
		}
	}
	if _, ok := err.(*exec.Error); ok {
		return &notAvailableError{tried: []string{args[0]}}
	}
	return errors.Annotate(err, "running dependency installer")
}

func installEnv() []string {
	env := append(os.Environ(), nonInteractiveEnv...)
	settings := proxy.DetectProxies()
	if proxyEnv := settings.AsEnvironmentValues(); len(proxyEnv) > 0 {
		logger.Debugf("forwarding proxy settings to installer")
		env = append(env, proxyEnv...)
	}
	return env
}

// installError reports an installer that ran and exited nonzero.
type installError struct {
	command string
	code    int
}

func (e *installError) Error() string {
	return fmt.Sprintf("dependency installer %s exited with code %d", e.command, e.code)
}

// notAvailableError reports that no installer executable could be
// found.
type notAvailableError struct {
	tried []string
}

func (e *notAvailableError) Error() string {
	if len(e.tried) == 1 {
		return fmt.Sprintf("dependency installer %q not found", e.tried[0])
	}
	return fmt.Sprintf("no dependency installer found, tried %s", shellquote.Join(e.tried...))
}

// IsInstallError reports whether err is a dependency install failure:
// either the installer could not be found, or it ran and exited
// nonzero.
func IsInstallError(err error) bool {
	switch errors.Cause(err).(type) {
	case *installError, *notAvailableError:
		return true
	}
	return false
}

// InstallExitCode returns the installer's exit code when err carries
// one.
func InstallExitCode(err error) (int, bool) {
	if installErr, ok := errors.Cause(err).(*installError); ok {
		return installErr.code, true
	}
	return 0, false
}
