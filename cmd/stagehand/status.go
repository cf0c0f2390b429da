// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/kballard/go-shellquote"

	"github.com/stagehand/stagehand/installer"
	"github.com/stagehand/stagehand/launcher"
	"github.com/stagehand/stagehand/manifest"
)

// newStatusCommand returns the command that reports the bootstrap
// state of the workspace.
func newStatusCommand() cmd.Command {
	return &statusCommand{}
}

type statusCommand struct {
	cmd.CommandBase
	workspace  string
	configPath string
	out        cmd.Output
}

const statusDoc = `
status reports what the bootstrap pipeline would find in the
workspace: the download staging directory and its contents, the
dependency manifest and whether it has changed since the last install,
and the installer and worker commands that would run.

status only reads. It takes no lock, changes nothing, and exits zero
even when parts of the workspace are missing.
`

// statusInfo is the serialisable status report.
type statusInfo struct {
	Workspace string         `yaml:"workspace" json:"workspace"`
	Downloads downloadsInfo  `yaml:"downloads" json:"downloads"`
	Manifest  manifestInfo   `yaml:"manifest" json:"manifest"`
	Installer string         `yaml:"installer" json:"installer"`
	Worker    string         `yaml:"worker" json:"worker"`
	Installed *installedInfo `yaml:"installed,omitempty" json:"installed,omitempty"`
}

type downloadsInfo struct {
	Path    string `yaml:"path" json:"path"`
	Present bool   `yaml:"present" json:"present"`
	Files   int    `yaml:"files" json:"files"`
	Size    string `yaml:"size,omitempty" json:"size,omitempty"`
}

type manifestInfo struct {
	Path    string `yaml:"path" json:"path"`
	Present bool   `yaml:"present" json:"present"`
	Entries int    `yaml:"entries" json:"entries"`
	SHA256  string `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	Stale   bool   `yaml:"stale,omitempty" json:"stale,omitempty"`
}

type installedInfo struct {
	At      string `yaml:"at" json:"at"`
	Entries int    `yaml:"entries" json:"entries"`
}

// Info implements Command.
func (c *statusCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "status",
		Purpose: "Report the bootstrap state of the workspace.",
		Doc:     statusDoc,
		SeeAlso: []string{"up", "install"},
	}
}

// SetFlags implements Command.
func (c *statusCommand) SetFlags(f *gnuflag.FlagSet) {
	c.CommandBase.SetFlags(f)
	f.StringVar(&c.workspace, "workspace", "", "workspace root (default $STAGEHAND_WORKSPACE or the current directory)")
	f.StringVar(&c.configPath, "config", "", "path to the stagehand configuration file")
	c.out.AddFlags(f, "yaml", map[string]cmd.Formatter{
		"yaml": cmd.FormatYaml,
		"json": cmd.FormatJson,
	})
}

// Init implements Command.
func (c *statusCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements Command.
func (c *statusCommand) Run(ctx *cmd.Context) error {
	p, err := newPipeline(c.workspace, c.configPath)
	if err != nil {
		return errors.Trace(err)
	}
	return c.out.Write(ctx, p.status())
}

// status gathers the report. Missing workspace pieces are reported,
// not failed on.
func (p *pipeline) status() statusInfo {
	cfg := p.config
	info := statusInfo{
		Workspace: p.workspace.Root(),
		Downloads: summariseDownloads(p.workspace.DownloadsDir()),
		Manifest:  manifestInfo{Path: cfg.Manifest()},
	}
	record, err := p.workspace.ReadRecord()
	if err == nil {
		info.Installed = &installedInfo{
			At:      humanize.Time(record.InstalledAt),
			Entries: record.Entries,
		}
	} else if !errors.IsNotFound(err) {
		logger.Warningf("cannot read install record: %v", err)
	}
	if m, err := manifest.Open(cfg.Manifest()); err == nil {
		info.Manifest.Present = true
		if entries, err := m.Entries(); err == nil {
			info.Manifest.Entries = len(entries)
		}
		if fingerprint, err := m.Fingerprint(); err == nil {
			info.Manifest.SHA256 = fingerprint
			info.Manifest.Stale = record != nil && record.ManifestSHA256 != fingerprint
		}
	}
	inst, err := installer.New(installer.Params{
		Manifest: cfg.Manifest(),
		WorkDir:  p.workspace.Root(),
		Command:  cfg.Installer(),
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	})
	if err == nil {
		info.Installer = shellquote.Join(inst.Command()...)
	} else {
		info.Installer = err.Error()
	}
	if worker, err := launcher.ResolveWorker(cfg); err == nil {
		info.Worker = shellquote.Join(worker.Args...)
	} else {
		info.Worker = err.Error()
	}
	return info
}

// summariseDownloads counts the files below the download directory and
// sums their sizes.
func summariseDownloads(path string) downloadsInfo {
	info := downloadsInfo{Path: path}
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return info
	}
	info.Present = true
	var total int64
	filepath.Walk(path, func(_ string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return nil
		}
		info.Files++
		total += fi.Size()
		return nil
	})
	info.Size = humanize.Bytes(uint64(total))
	return info
}
