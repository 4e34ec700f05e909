package domain

import (
	"github.com/Masterminds/semver/v3"
)

// Version wraps semver.Version for ordering and tagging resolved versions.
// Values come from SemverEngine.Parse.
type Version struct {
	*semver.Version
}

// Compare compares two versions.
func (v *Version) Compare(other *Version) int {
	return v.Version.Compare(other.Version)
}

// Tag returns the git tag name for the version. A "v" written in the
// manifest is not repeated after the prefix.
func (v *Version) Tag(prefix string) string {
	return prefix + v.Version.String()
}

// String returns the version without any prefix, the way package manifests store it.
func (v *Version) String() string {
	return v.Version.String()
}
