package service

import "time"

// Timeout constants for external tools
const (
	// DefaultToolTimeout bounds lint, format and check commands
	DefaultToolTimeout = 10 * time.Minute
	// DefaultInstallTimeout bounds dependency installation
	DefaultInstallTimeout = 15 * time.Minute
	// DefaultNPMTimeout bounds registry operations
	DefaultNPMTimeout = 2 * time.Minute
)

const githubActionsTrue = "true"
