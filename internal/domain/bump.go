package domain

import "strings"

// ReleaseType names an increment kind understood by the semver engine.
type ReleaseType string

const (
	ReleaseMajor      ReleaseType = "major"
	ReleaseMinor      ReleaseType = "minor"
	ReleasePatch      ReleaseType = "patch"
	ReleasePremajor   ReleaseType = "premajor"
	ReleasePreminor   ReleaseType = "preminor"
	ReleasePrepatch   ReleaseType = "prepatch"
	ReleasePrerelease ReleaseType = "prerelease"
)

// DefaultPrereleaseID is used when neither the request, the current version nor
// the configuration name a prerelease channel.
const DefaultPrereleaseID = "edge"

// IsPre reports whether the release type produces a prerelease version.
func (r ReleaseType) IsPre() bool {
	return strings.HasPrefix(string(r), "pre")
}

// VersionBumpRequest describes the caller's intent for the next version.
// When several bump flags are set, major wins over minor, and minor over the
// prerelease-aware default.
type VersionBumpRequest struct {
	ExplicitVersion string
	BumpMajor       bool
	BumpMinor       bool
	BumpPatch       bool
	Prerelease      bool
	PrereleaseID    string
}

// VersionDefaults carries the configuration fallbacks for version resolution.
type VersionDefaults struct {
	PrereleaseID string
	TagPrefix    string
}

// VersionBumpResult is the outcome of a successful resolution.
type VersionBumpResult struct {
	OldVersion  string
	NewVersion  string
	ReleaseType ReleaseType
	TagName     string
}

// SemverEngine is the semantic-version toolkit the resolvers depend on.
type SemverEngine interface {
	Parse(version string) (*Version, error)
	IsValid(version string) bool
	// Prerelease returns the dot-separated prerelease components, or nil when
	// the version is stable or invalid.
	Prerelease(version string) []string
	Increment(version string, releaseType ReleaseType, prereleaseID string) (string, error)
}
