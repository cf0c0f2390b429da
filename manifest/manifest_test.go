// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manifest_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/stagehand/stagehand/manifest"
)

type manifestSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&manifestSuite{})

func (s *manifestSuite) writeManifest(c *gc.C, content string) string {
	path := filepath.Join(c.MkDir(), manifest.DefaultFile)
	err := os.WriteFile(path, []byte(content), 0644)
	c.Assert(err, jc.ErrorIsNil)
	return path
}

func (s *manifestSuite) TestOpenMissing(c *gc.C) {
	_, err := manifest.Open(filepath.Join(c.MkDir(), "requirements.txt"))
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
	c.Assert(err, gc.ErrorMatches, `dependency manifest ".*" not found`)
}

func (s *manifestSuite) TestOpenDirectory(c *gc.C) {
	_, err := manifest.Open(c.MkDir())
	c.Assert(err, gc.ErrorMatches, `dependency manifest ".*" is a directory`)
}

func (s *manifestSuite) TestOpenEmptyFileValid(c *gc.C) {
	m, err := manifest.Open(s.writeManifest(c, ""))
	c.Assert(err, jc.ErrorIsNil)
	entries, err := m.Entries()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(entries, gc.HasLen, 0)
}

func (s *manifestSuite) TestEntries(c *gc.C) {
	for i, test := range []struct {
		about   string
		content string
		expect  []manifest.Entry
	}{{
		about:   "plain names",
		content: "requests\nflask\n",
		expect:  []manifest.Entry{{Name: "requests"}, {Name: "flask"}},
	}, {
		about:   "version constraints",
		content: "python-telegram-bot==20.7\nrequests>=2.28,<3\n",
		expect: []manifest.Entry{
			{Name: "python-telegram-bot", Constraint: "==20.7"},
			{Name: "requests", Constraint: ">=2.28,<3"},
		},
	}, {
		about:   "comments and blanks dropped",
		content: "# deps\n\nrequests  # http client\n   \n",
		expect:  []manifest.Entry{{Name: "requests"}},
	}, {
		about:   "option lines dropped",
		content: "--index-url https://pypi.example.com\n-e ./local\nrequests\n",
		expect:  []manifest.Entry{{Name: "requests"}},
	}, {
		about:   "extras kept in constraint",
		content: "requests[socks]==2.31.0\n",
		expect:  []manifest.Entry{{Name: "requests", Constraint: "[socks]==2.31.0"}},
	}, {
		about:   "environment marker kept in constraint",
		content: "uvloop; sys_platform != 'win32'\n",
		expect:  []manifest.Entry{{Name: "uvloop", Constraint: "; sys_platform != 'win32'"}},
	}} {
		c.Logf("test %d: %s", i, test.about)
		m, err := manifest.Open(s.writeManifest(c, test.content))
		c.Assert(err, jc.ErrorIsNil)
		entries, err := m.Entries()
		c.Assert(err, jc.ErrorIsNil)
		c.Check(entries, jc.DeepEquals, test.expect)
	}
}

func (s *manifestSuite) TestNamesSortedAndDeduped(c *gc.C) {
	m, err := manifest.Open(s.writeManifest(c, "zope\nrequests==1\nrequests==2\naiohttp\n"))
	c.Assert(err, jc.ErrorIsNil)
	names, err := m.Names()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(names, jc.DeepEquals, []string{"aiohttp", "requests", "zope"})
}

func (s *manifestSuite) TestFingerprint(c *gc.C) {
	m1, err := manifest.Open(s.writeManifest(c, "requests==2.31.0\n"))
	c.Assert(err, jc.ErrorIsNil)
	m2, err := manifest.Open(s.writeManifest(c, "requests==2.31.0\n"))
	c.Assert(err, jc.ErrorIsNil)
	m3, err := manifest.Open(s.writeManifest(c, "requests==2.30.0\n"))
	c.Assert(err, jc.ErrorIsNil)

	fp1, err := m1.Fingerprint()
	c.Assert(err, jc.ErrorIsNil)
	fp2, err := m2.Fingerprint()
	c.Assert(err, jc.ErrorIsNil)
	fp3, err := m3.Fingerprint()
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(fp1, gc.HasLen, 64)
	c.Assert(fp1, gc.Equals, fp2)
	c.Assert(fp1, gc.Not(gc.Equals), fp3)
}

func (s *manifestSuite) TestPath(c *gc.C) {
	path := s.writeManifest(c, "requests\n")
	m, err := manifest.Open(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(m.Path(), gc.Equals, path)
}
