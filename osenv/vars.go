// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package osenv

import (
	"os"
)

const (
	// WorkspaceEnvKey overrides the workspace root directory, which
	// otherwise defaults to the current working directory.
	WorkspaceEnvKey = "STAGEHAND_WORKSPACE"

	// ConfigEnvKey overrides the location of the stagehand.conf file.
	ConfigEnvKey = "STAGEHAND_CONFIG"

	// DownloadsDirEnvKey overrides the download staging directory.
	DownloadsDirEnvKey = "STAGEHAND_DOWNLOADS_DIR"

	// ManifestEnvKey overrides the dependency manifest path.
	ManifestEnvKey = "STAGEHAND_MANIFEST"

	// WorkerEnvKey overrides the worker command line.
	WorkerEnvKey = "STAGEHAND_WORKER"

	// LoggingConfigEnvKey holds the default logging configuration,
	// applied unless --logging-config is given on the command line.
	LoggingConfigEnvKey = "STAGEHAND_LOGGING_CONFIG"

	// StartupLoggingConfigEnvKey holds the logging configuration applied
	// before command line processing begins, so that problems during
	// startup itself can be diagnosed.
	StartupLoggingConfigEnvKey = "STAGEHAND_STARTUP_LOGGING_CONFIG"
)

// Workspace returns the workspace root from the environment, or the
// fallback when the variable is empty or unset.
func Workspace(fallback string) string {
	if workspace := os.Getenv(WorkspaceEnvKey); workspace != "" {
		return workspace
	}
	return fallback
}

// LoggingConfig returns the logging configuration from the environment.
// An empty result means no configuration was specified.
func LoggingConfig() string {
	return os.Getenv(LoggingConfigEnvKey)
}
