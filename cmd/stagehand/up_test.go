// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/cmd/v3/cmdtesting"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/stagehand/stagehand/workspace"
)

type upSuite struct {
	baseSuite
}

var _ = gc.Suite(&upSuite{})

// setUpHappyWorkspace writes a manifest, a shell-runnable entry script
// and a configuration whose installer always succeeds.
func (s *upSuite) setUpHappyWorkspace(c *gc.C) {
	s.writeManifest(c, "requests==2.31.0", "pyyaml")
	s.writeEntry(c, "echo worker-ran")
	s.writeConfig(c,
		`installer: "true"`,
		`interpreters: [sh]`,
	)
}

func (s *upSuite) runUp(c *gc.C, args ...string) (*cmd.Context, error) {
	args = append([]string{"--workspace", s.root}, args...)
	return cmdtesting.RunCommand(c, newUpCommand(), args...)
}

func (s *upSuite) TestFullPipeline(c *gc.C) {
	s.setUpHappyWorkspace(c)
	ctx, err := s.runUp(c)
	c.Assert(err, jc.ErrorIsNil)

	stdout := cmdtesting.Stdout(ctx)
	c.Check(stdout, jc.Contains, "Step 1/3")
	c.Check(stdout, jc.Contains, "Step 2/3")
	c.Check(stdout, jc.Contains, "Step 3/3")
	c.Check(stdout, jc.Contains, "worker-ran")
	c.Check(s.downloadsDir(), jc.IsDirectory)
	c.Check(s.recordPath(), jc.IsNonEmptyFile)
}

func (s *upSuite) TestRecordDescribesManifest(c *gc.C) {
	s.setUpHappyWorkspace(c)
	_, err := s.runUp(c)
	c.Assert(err, jc.ErrorIsNil)

	ws, err := workspace.New(workspace.Params{
		Root:         s.root,
		DownloadsDir: "downloads",
		Clock:        clock.WallClock,
	})
	c.Assert(err, jc.ErrorIsNil)
	record, err := ws.ReadRecord()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(record.Entries, gc.Equals, 2)
	c.Check(record.ManifestSHA256, gc.Matches, "[0-9a-f]{64}")
	c.Check(record.InstalledAt.After(time.Now().Add(-time.Minute)), jc.IsTrue)
}

func (s *upSuite) TestWorkerExitCodeForwarded(c *gc.C) {
	s.writeManifest(c, "requests")
	s.writeConfig(c,
		`installer: "true"`,
		`worker: "sh -c 'exit 42'"`,
	)
	_, err := s.runUp(c)
	c.Assert(err, jc.Satisfies, cmd.IsRcPassthroughError)
	c.Assert(err, gc.ErrorMatches, "subprocess encountered error code 42")
}

func (s *upSuite) TestInstallFailureStopsPipeline(c *gc.C) {
	s.writeManifest(c, "requests")
	s.writeEntry(c, "echo launched > worker-marker")
	s.writeConfig(c,
		`installer: "sh -c 'echo install-broken >&2; exit 7'"`,
		`interpreters: [sh]`,
	)
	ctx, err := s.runUp(c)
	c.Assert(err, jc.Satisfies, cmd.IsRcPassthroughError)
	c.Assert(err, gc.ErrorMatches, "subprocess encountered error code 7")
	c.Check(cmdtesting.Stderr(ctx), jc.Contains, "install-broken")
	// The worker never ran and no install was recorded.
	c.Check(filepath.Join(s.root, "worker-marker"), jc.DoesNotExist)
	c.Check(s.recordPath(), jc.DoesNotExist)
}

func (s *upSuite) TestDownloadsPathAsFile(c *gc.C) {
	s.writeManifest(c, "requests")
	s.writeConfig(c,
		`installer: "sh -c 'echo ran > installer-marker'"`,
		`interpreters: [sh]`,
	)
	err := os.WriteFile(s.downloadsDir(), []byte("not a directory"), 0644)
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.runUp(c)
	c.Assert(err, jc.Satisfies, workspace.IsNotADirectory)
	c.Assert(err, gc.ErrorMatches, `".*downloads" exists but is not a directory`)
	// Step 2 never ran.
	c.Check(filepath.Join(s.root, "installer-marker"), jc.DoesNotExist)
}

func (s *upSuite) TestWorkerEntryMissing(c *gc.C) {
	s.writeManifest(c, "requests")
	s.writeConfig(c,
		`installer: "true"`,
		`interpreters: [sh]`,
	)
	ctx, err := s.runUp(c)
	c.Assert(err, gc.ErrorMatches, `worker entry ".*main.py" not found`)
	// Steps 1 and 2 completed first.
	stdout := cmdtesting.Stdout(ctx)
	c.Check(stdout, jc.Contains, "Step 2/3")
	c.Check(stdout, gc.Not(jc.Contains), "Step 3/3")
	c.Check(s.downloadsDir(), jc.IsDirectory)
}

func (s *upSuite) TestRequiredEnvMissing(c *gc.C) {
	s.setUpHappyWorkspace(c)
	s.writeConfig(c,
		`installer: "true"`,
		`interpreters: [sh]`,
		`require-env: [STAGEHAND_TEST_TOKEN, STAGEHAND_TEST_CHAT]`,
	)
	_, err := s.runUp(c)
	c.Assert(err, gc.ErrorMatches,
		"required environment variables not set: STAGEHAND_TEST_CHAT, STAGEHAND_TEST_TOKEN")
	// Nothing ran, not even step 1.
	c.Check(s.downloadsDir(), jc.DoesNotExist)
}

func (s *upSuite) TestRequiredEnvPresent(c *gc.C) {
	s.setUpHappyWorkspace(c)
	s.writeConfig(c,
		`installer: "true"`,
		`interpreters: [sh]`,
		`require-env: [STAGEHAND_TEST_TOKEN]`,
	)
	s.PatchEnvironment("STAGEHAND_TEST_TOKEN", "sekrit")
	_, err := s.runUp(c)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *upSuite) TestWorkerEnvReachesWorker(c *gc.C) {
	s.writeManifest(c, "requests")
	s.writeEntry(c, `echo "greeting=$STAGEHAND_GREETING"`)
	s.writeConfig(c,
		`installer: "true"`,
		`interpreters: [sh]`,
		`worker-env:`,
		`  STAGEHAND_GREETING: hello`,
	)
	ctx, err := s.runUp(c)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cmdtesting.Stdout(ctx), jc.Contains, "greeting=hello")
}

func (s *upSuite) TestNoLaunch(c *gc.C) {
	s.writeManifest(c, "requests")
	s.writeEntry(c, "echo launched > worker-marker")
	s.writeConfig(c,
		`installer: "true"`,
		`interpreters: [sh]`,
	)
	ctx, err := s.runUp(c, "--no-launch")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cmdtesting.Stdout(ctx), jc.Contains, "not launching worker")
	c.Check(filepath.Join(s.root, "worker-marker"), jc.DoesNotExist)
	c.Check(s.recordPath(), jc.IsNonEmptyFile)
}

func (s *upSuite) TestRerunIsIdempotent(c *gc.C) {
	s.setUpHappyWorkspace(c)
	err := os.Mkdir(s.downloadsDir(), 0755)
	c.Assert(err, jc.ErrorIsNil)
	existing := filepath.Join(s.downloadsDir(), "existing.bin")
	err = os.WriteFile(existing, []byte("precious"), 0644)
	c.Assert(err, jc.ErrorIsNil)

	for i := 0; i < 2; i++ {
		c.Logf("run %d", i)
		_, err := s.runUp(c)
		c.Assert(err, jc.ErrorIsNil)
		data, err := os.ReadFile(existing)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(string(data), gc.Equals, "precious")
	}
}

func (s *upSuite) TestWorkspaceLocked(c *gc.C) {
	s.setUpHappyWorkspace(c)
	s.writeConfig(c,
		`installer: "true"`,
		`interpreters: [sh]`,
		`lock-timeout: 50ms`,
	)
	ws, err := workspace.New(workspace.Params{
		Root:         s.root,
		DownloadsDir: "downloads",
		Clock:        clock.WallClock,
	})
	c.Assert(err, jc.ErrorIsNil)
	releaser, err := ws.Lock(nil, time.Second)
	c.Assert(err, jc.ErrorIsNil)
	defer releaser.Release()

	_, err = s.runUp(c)
	c.Assert(err, gc.ErrorMatches, "acquiring lock for workspace .*")
}

func (s *upSuite) TestUnexpectedArgs(c *gc.C) {
	_, err := s.runUp(c, "fetch-all")
	c.Assert(err, gc.ErrorMatches, `unrecognized args: \["fetch-all"\]`)
}
