// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package installer

import (
	"io"
	"os"
	"os/exec"

	"github.com/juju/errors"
	jujuos "github.com/juju/os/v2"
	"github.com/juju/os/v2/series"
	"github.com/kballard/go-shellquote"
)

// hostOS is an overloading point for tests.
var hostOS = jujuos.HostOS

// This is the default apt-get command used in cloud-init, the various
// settings mean that apt won't actually block waiting for a prompt
// from the user.
var aptGetCommand = []string{
	"apt-get", "--option=Dpkg::Options::=--force-confold",
	"--option=Dpkg::options::=--force-unsafe-io", "--assume-yes", "--quiet",
}

// aptGetEnvOptions are options we need to pass to apt-get to not have
// it prompt the user.
var aptGetEnvOptions = []string{"DEBIAN_FRONTEND=noninteractive"}

// EnsureSystemPackages installs the given system packages (typically
// python3-pip on a bare image) before the dependency install proper.
// Only apt-based hosts are supported; elsewhere the preflight fails
// rather than guessing at a package manager.
func EnsureSystemPackages(packages []string, stdout, stderr io.Writer) error {
	if len(packages) == 0 {
		return nil
	}
	if hostOS() != jujuos.Ubuntu {
		hostSeries, _ := series.HostSeries()
		return errors.NotSupportedf("system package install on series %q", hostSeries)
	}
	args := append([]string(nil), aptGetCommand...)
	args = append(args, "install")
	args = append(args, packages...)
	logger.Infof("running %s", shellquote.Join(args...))

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), aptGetEnvOptions...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := runCommand(cmd); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return &installError{
				command: shellquote.Join(args...),
				code:    exitError.ExitCode(),
			}
		}
		return errors.Annotate(err, "running apt-get")
	}
	return nil
}
