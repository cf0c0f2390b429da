// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package workspace maintains the on-disk layout the orchestrator
// prepares for the worker: the download staging directory, the state
// directory holding the install record, and the optional log directory.
package workspace

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/mutex/v2"
)

var logger = loggo.GetLogger("stagehand.workspace")

const (
	// DefaultDownloadsDir is the download staging directory created in
	// a workspace unless configured otherwise.
	DefaultDownloadsDir = "downloads"

	// stateDirName holds stagehand's own bookkeeping inside the
	// workspace.
	stateDirName = ".stagehand"

	recordFile = "installed.yaml"

	dirPerms = 0755
)

// Params holds everything needed to describe a workspace.
type Params struct {
	// Root is the workspace root directory.
	Root string
	// DownloadsDir is the staging directory for the worker's downloads,
	// relative to Root unless absolute.
	DownloadsDir string
	// LogDir, when non-empty, is created alongside the other
	// directories so file logging has somewhere to write.
	LogDir string
	// Clock is used when waiting for the workspace lock.
	Clock clock.Clock
}

// Validate returns an error if the params are not usable.
func (p Params) Validate() error {
	if p.Root == "" {
		return errors.NotValidf("empty Root")
	}
	if p.DownloadsDir == "" {
		return errors.NotValidf("empty DownloadsDir")
	}
	if p.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Workspace is the directory tree the orchestrator prepares and the
// worker runs in.
type Workspace struct {
	root         string
	downloadsDir string
	logDir       string
	clock        clock.Clock
}

// New returns a Workspace for the given params. Nothing is created on
// disk until Ensure is called.
func New(p Params) (*Workspace, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	root, err := filepath.Abs(p.Root)
	if err != nil {
		return nil, errors.Annotatef(err, "resolving workspace root %q", p.Root)
	}
	w := &Workspace{
		root:         root,
		downloadsDir: resolve(root, p.DownloadsDir),
		clock:        p.Clock,
	}
	if p.LogDir != "" {
		w.logDir = resolve(root, p.LogDir)
	}
	return w, nil
}

func resolve(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// DownloadsDir returns the absolute download staging directory.
func (w *Workspace) DownloadsDir() string {
	return w.downloadsDir
}

// StateDir returns the absolute stagehand state directory.
func (w *Workspace) StateDir() string {
	return filepath.Join(w.root, stateDirName)
}

// LogDir returns the absolute log directory, or "" when file logging
// is not configured.
func (w *Workspace) LogDir() string {
	return w.logDir
}

// Ensure creates the workspace directories. It is idempotent: an
// existing directory, empty or not, is left exactly as it was. A path
// that exists as something other than a directory fails with an error
// satisfying IsNotADirectory, and nothing after it is attempted.
func (w *Workspace) Ensure() error {
	dirs := []string{w.downloadsDir, w.StateDir()}
	if w.logDir != "" {
		dirs = append(dirs, w.logDir)
	}
	for _, dir := range dirs {
		if err := ensureDir(dir); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func ensureDir(path string) error {
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return &notADirectoryError{path: path}
		}
		logger.Debugf("directory %q already present", path)
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Annotatef(err, "checking %q", path)
	}
	if err := os.MkdirAll(path, dirPerms); err != nil {
		return errors.Annotatef(err, "creating %q", path)
	}
	logger.Debugf("created directory %q", path)
	return nil
}

// Lock acquires the cross-process workspace lock, waiting up to
// timeout for another run to release it. The returned releaser must be
// released by the caller.
func (w *Workspace) Lock(cancel <-chan struct{}, timeout time.Duration) (mutex.Releaser, error) {
	spec := mutex.Spec{
		Name:    w.lockName(),
		Clock:   w.clock,
		Delay:   250 * time.Millisecond,
		Timeout: timeout,
		Cancel:  cancel,
	}
	releaser, err := mutex.Acquire(spec)
	if err != nil {
		return nil, errors.Annotatef(err, "acquiring lock for workspace %q", w.root)
	}
	return releaser, nil
}

// lockName derives a mutex name unique to this workspace root. Mutex
// names must begin with a letter and stay short, so the root path is
// hashed.
func (w *Workspace) lockName() string {
	sum := sha256.Sum256([]byte(w.root))
	return fmt.Sprintf("stagehand-%x", sum[:4])
}

type notADirectoryError struct {
	path string
}

func (e *notADirectoryError) Error() string {
	return fmt.Sprintf("%q exists but is not a directory", e.path)
}

// IsNotADirectory reports whether err indicates a workspace path that
// exists as something other than a directory.
func IsNotADirectory(err error) bool {
	_, ok := errors.Cause(err).(*notADirectoryError)
	return ok
}
