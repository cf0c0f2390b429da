// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config loads the stagehand.conf workspace configuration.
// The file is YAML prefixed by a format line, in the manner of agent
// configuration files:
//
//	# format 1.0
//	downloads-dir: downloads
//	manifest: requirements.txt
//
// A missing file yields the defaults, which reproduce the plain
// three-step bootstrap exactly.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/kballard/go-shellquote"

	"github.com/stagehand/stagehand/osenv"
)

var logger = loggo.GetLogger("stagehand.config")

const (
	// DefaultFile is the configuration file name looked up in the
	// workspace root.
	DefaultFile = "stagehand.conf"

	formatPrefix  = "# format "
	currentFormat = "1.0"
)

// Config holds the resolved workspace configuration. All paths are
// absolute, resolved against the workspace root.
type Config struct {
	workspaceRoot        string
	downloadsDir         string
	manifest             string
	installer            []string
	ensureSystemPackages bool
	systemPackages       []string
	interpreters         []string
	worker               []string
	workerEntry          string
	workerEnv            map[string]string
	requireEnv           []string
	logDir               string
	lockTimeout          time.Duration
}

// Load reads the configuration for the workspace rooted at root. When
// path is empty the default file in the workspace is used if present;
// an explicitly named file must exist. STAGEHAND_* environment
// variables override file values.
func Load(path, root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Annotatef(err, "resolving workspace root %q", root)
	}
	explicit := path != ""
	if !explicit {
		path = filepath.Join(absRoot, DefaultFile)
	}
	raw, err := readRaw(path, explicit)
	if err != nil {
		return nil, errors.Trace(err)
	}
	attrs, err := coerce(raw)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid configuration %q", path)
	}
	cfg, err := newConfig(absRoot, attrs)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid configuration %q", path)
	}
	return cfg, nil
}

// readRaw returns the parsed YAML body of the config file, or nil when
// no file is in play.
func readRaw(path string, explicit bool) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if explicit {
			return nil, errors.NotFoundf("configuration file %q", path)
		}
		logger.Debugf("no configuration file at %q, using defaults", path)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "reading configuration %q", path)
	}
	body, err := checkFormat(path, data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw, err := unmarshalBody(body)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing configuration %q", path)
	}
	return raw, nil
}

// checkFormat verifies the leading format line and returns the YAML
// body that follows it.
func checkFormat(path string, data []byte) ([]byte, error) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		i = len(data)
	}
	line := strings.TrimSpace(string(data[:i]))
	if !strings.HasPrefix(line, formatPrefix) {
		return nil, errors.Errorf("configuration %q has no format line, expected %q", path, formatPrefix+currentFormat)
	}
	version := strings.TrimPrefix(line, formatPrefix)
	if version != currentFormat {
		return nil, errors.Errorf("unsupported configuration format %q, only %q is supported", version, currentFormat)
	}
	if i >= len(data) {
		return nil, nil
	}
	return data[i+1:], nil
}

func newConfig(root string, attrs attributes) (*Config, error) {
	cfg := &Config{
		workspaceRoot:        root,
		downloadsDir:         attrs.string("downloads-dir"),
		manifest:             attrs.string("manifest"),
		ensureSystemPackages: attrs.bool("ensure-system-packages"),
		systemPackages:       attrs.stringList("system-packages"),
		interpreters:         attrs.stringList("interpreters"),
		workerEntry:          attrs.string("worker-entry"),
		workerEnv:            attrs.stringMap("worker-env"),
		requireEnv:           set.NewStrings(attrs.stringList("require-env")...).SortedValues(),
		logDir:               attrs.string("log-dir"),
	}
	if cfg.interpreters == nil {
		cfg.interpreters = append([]string(nil), DefaultInterpreters...)
	}

	if env := os.Getenv(osenv.DownloadsDirEnvKey); env != "" {
		cfg.downloadsDir = env
	}
	if env := os.Getenv(osenv.ManifestEnvKey); env != "" {
		cfg.manifest = env
	}

	installer := attrs.string("installer")
	worker := attrs.string("worker")
	if env := os.Getenv(osenv.WorkerEnvKey); env != "" {
		worker = env
	}
	var err error
	if cfg.installer, err = splitCommand("installer", installer); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.worker, err = splitCommand("worker", worker); err != nil {
		return nil, errors.Trace(err)
	}

	timeout := attrs.string("lock-timeout")
	if cfg.lockTimeout, err = time.ParseDuration(timeout); err != nil {
		return nil, errors.NotValidf("lock-timeout %q", timeout)
	}

	if err := cfg.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func splitCommand(key, value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	args, err := shellquote.Split(value)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing %s command %q", key, value)
	}
	return args, nil
}

func (c *Config) validate() error {
	if c.downloadsDir == "" {
		return errors.NotValidf("empty downloads-dir")
	}
	if c.manifest == "" {
		return errors.NotValidf("empty manifest")
	}
	if len(c.worker) == 0 {
		if len(c.interpreters) == 0 {
			return errors.NotValidf("no worker command and no interpreters")
		}
		if c.workerEntry == "" {
			return errors.NotValidf("no worker command and empty worker-entry")
		}
	}
	if c.lockTimeout <= 0 {
		return errors.NotValidf("non-positive lock-timeout")
	}
	return nil
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.workspaceRoot, path)
}

// WorkspaceRoot returns the absolute workspace root directory.
func (c *Config) WorkspaceRoot() string {
	return c.workspaceRoot
}

// DownloadsDir returns the absolute download staging directory.
func (c *Config) DownloadsDir() string {
	return c.resolve(c.downloadsDir)
}

// Manifest returns the absolute dependency manifest path.
func (c *Config) Manifest() string {
	return c.resolve(c.manifest)
}

// Installer returns the explicit installer command, or nil when the
// installer should be discovered.
func (c *Config) Installer() []string {
	return append([]string(nil), c.installer...)
}

// EnsureSystemPackages reports whether the system package preflight
// should run before the dependency install.
func (c *Config) EnsureSystemPackages() bool {
	return c.ensureSystemPackages
}

// SystemPackages returns the system packages for the preflight.
func (c *Config) SystemPackages() []string {
	return append([]string(nil), c.systemPackages...)
}

// Interpreters returns the interpreter names searched, in order, when
// no explicit worker command is configured.
func (c *Config) Interpreters() []string {
	return append([]string(nil), c.interpreters...)
}

// Worker returns the explicit worker command, or nil when the worker
// should be resolved from the interpreter list and entry script.
func (c *Config) Worker() []string {
	return append([]string(nil), c.worker...)
}

// WorkerEntry returns the absolute path of the worker entry script
// used when no explicit worker command is configured.
func (c *Config) WorkerEntry() string {
	return c.resolve(c.workerEntry)
}

// WorkerEnv returns extra environment entries for the worker process.
func (c *Config) WorkerEnv() map[string]string {
	env := make(map[string]string, len(c.workerEnv))
	for k, v := range c.workerEnv {
		env[k] = v
	}
	return env
}

// RequireEnv returns the environment variable names that must be set
// before the pipeline may run.
func (c *Config) RequireEnv() []string {
	return append([]string(nil), c.requireEnv...)
}

// LogDir returns the log directory, resolved against the workspace
// root, or "" when file logging is disabled.
func (c *Config) LogDir() string {
	if c.logDir == "" {
		return ""
	}
	return c.resolve(c.logDir)
}

// LockTimeout returns how long to wait for the workspace lock.
func (c *Config) LockTimeout() time.Duration {
	return c.lockTimeout
}
