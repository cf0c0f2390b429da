// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manifest

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v3"
)

var logger = loggo.GetLogger("stagehand.manifest")

// DefaultFile is the manifest file name expected in a fresh checkout.
const DefaultFile = "requirements.txt"

// Entry is a single requirement parsed from a manifest line. Parsing is
// best effort and exists for reporting only; the installer is always
// handed the manifest file itself, never the parsed form.
type Entry struct {
	// Name is the distribution name as written.
	Name string
	// Constraint holds everything after the name: version specifiers,
	// extras, environment markers. Opaque.
	Constraint string
}

// Manifest is a dependency manifest on disk.
type Manifest struct {
	path string
}

// Open returns the manifest at path. It fails with NotFound when no
// file exists there, so that a missing manifest surfaces as a clear
// diagnostic before the installer is ever invoked.
func Open(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("dependency manifest %q", path)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "reading dependency manifest %q", path)
	}
	if info.IsDir() {
		return nil, errors.Errorf("dependency manifest %q is a directory", path)
	}
	return &Manifest{path: path}, nil
}

// Path returns the manifest location on disk.
func (m *Manifest) Path() string {
	return m.path
}

// Entries parses the manifest into requirement entries. Comment and
// blank lines are dropped, as are installer option lines ("-r", "-e",
// "--index-url" and friends); an empty result is valid.
func (m *Manifest) Entries() ([]Entry, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading dependency manifest %q", m.path)
	}
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-") {
			logger.Debugf("skipping installer option line %q", line)
			continue
		}
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		entries = append(entries, parseEntry(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotatef(err, "scanning dependency manifest %q", m.path)
	}
	return entries, nil
}

// Names returns the distinct requirement names, sorted.
func (m *Manifest) Names() ([]string, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := set.NewStrings()
	for _, entry := range entries {
		names.Add(entry.Name)
	}
	return names.SortedValues(), nil
}

// Fingerprint returns the SHA-256 hash of the manifest contents, used
// to record what was installed and to report staleness.
func (m *Manifest) Fingerprint() (string, error) {
	hash, _, err := utils.ReadFileSHA256(m.path)
	if err != nil {
		return "", errors.Annotatef(err, "hashing dependency manifest %q", m.path)
	}
	return hash, nil
}

func parseEntry(line string) Entry {
	if i := strings.IndexAny(line, "=<>!~;[ "); i >= 0 {
		return Entry{
			Name:       strings.TrimSpace(line[:i]),
			Constraint: strings.TrimSpace(line[i:]),
		}
	}
	return Entry{Name: line}
}
