// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package workspace

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/utils/v3"
	goyaml "gopkg.in/yaml.v2"
)

// Record describes the most recent successful dependency install. It
// is informational: the install step always runs regardless of what
// the record says, but status reporting uses it to flag staleness.
type Record struct {
	// ManifestSHA256 is the fingerprint of the manifest that was
	// installed.
	ManifestSHA256 string `yaml:"manifest-sha256"`
	// InstalledAt is when the install completed.
	InstalledAt time.Time `yaml:"installed-at"`
	// Entries is the number of requirements parsed from the manifest
	// at install time.
	Entries int `yaml:"entries"`
}

func (w *Workspace) recordPath() string {
	return filepath.Join(w.StateDir(), recordFile)
}

// ReadRecord returns the install record, or NotFound when no install
// has been recorded for this workspace.
func (w *Workspace) ReadRecord() (*Record, error) {
	data, err := os.ReadFile(w.recordPath())
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("install record for workspace %q", w.root)
	}
	if err != nil {
		return nil, errors.Annotate(err, "reading install record")
	}
	var record Record
	if err := goyaml.Unmarshal(data, &record); err != nil {
		return nil, errors.Annotate(err, "parsing install record")
	}
	return &record, nil
}

// WriteRecord atomically replaces the install record.
func (w *Workspace) WriteRecord(record *Record) error {
	data, err := goyaml.Marshal(record)
	if err != nil {
		return errors.Annotate(err, "serializing install record")
	}
	if err := utils.AtomicWriteFile(w.recordPath(), data, 0644); err != nil {
		return errors.Annotate(err, "writing install record")
	}
	logger.Debugf("recorded install of manifest %s", record.ManifestSHA256)
	return nil
}
