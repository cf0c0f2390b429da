// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/stagehand/stagehand/osenv"
)

// baseSuite provides a scratch workspace and keeps ambient stagehand
// environment settings from leaking into command runs.
type baseSuite struct {
	testing.IsolationSuite
	root string
}

func (s *baseSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.root = c.MkDir()
	for _, key := range []string{
		osenv.WorkspaceEnvKey,
		osenv.ConfigEnvKey,
		osenv.DownloadsDirEnvKey,
		osenv.ManifestEnvKey,
		osenv.WorkerEnvKey,
	} {
		s.PatchEnvironment(key, "")
	}
}

// writeConfig writes a workspace configuration with the given body
// lines under the format header.
func (s *baseSuite) writeConfig(c *gc.C, lines ...string) {
	content := "# format 1.0\n" + strings.Join(lines, "\n") + "\n"
	err := os.WriteFile(filepath.Join(s.root, "stagehand.conf"), []byte(content), 0644)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *baseSuite) writeManifest(c *gc.C, lines ...string) {
	content := strings.Join(lines, "\n") + "\n"
	err := os.WriteFile(filepath.Join(s.root, "requirements.txt"), []byte(content), 0644)
	c.Assert(err, jc.ErrorIsNil)
}

// writeEntry writes the worker entry script. The tests run it with a
// shell interpreter so no python needs to be present.
func (s *baseSuite) writeEntry(c *gc.C, script string) {
	err := os.WriteFile(filepath.Join(s.root, "main.py"), []byte(script+"\n"), 0644)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *baseSuite) downloadsDir() string {
	return filepath.Join(s.root, "downloads")
}

func (s *baseSuite) recordPath() string {
	return filepath.Join(s.root, ".stagehand", "installed.yaml")
}
