// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package version holds the stagehand release version. It acts as
// guardian of the current version number, reported by the version
// command and in run logging.
package version

import (
	semversion "github.com/juju/version/v2"
)

// The presence and format of this constant is very important.
// The packaging build recipe uses this value for the version number
// of the release package.
const version = "1.0.2"

// Current is the version of the running stagehand binary.
var Current = semversion.MustParse(version)
