// Package version carries the build information injected through -ldflags.
package version

import "strings"

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Summary returns a human-friendly version string for CLI output.
func Summary() string {
	v := strings.TrimSpace(Version)
	if v == "" {
		v = "dev"
	}
	commit := strings.TrimSpace(CommitHash)
	if commit == "" || commit == "unknown" {
		return v
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return v + " (" + commit + ")"
}
