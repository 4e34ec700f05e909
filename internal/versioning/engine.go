// Package versioning implements the semantic-version engine used by the
// resolvers. Increments follow npm's semver "inc" rules so that versions
// written by nodekit match what `npm version` would produce.
package versioning

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/compozy/nodekit/internal/domain"
)

// Engine is the Masterminds-backed domain.SemverEngine.
type Engine struct{}

// NewEngine creates a new Engine.
func NewEngine() *Engine {
	return &Engine{}
}

var _ domain.SemverEngine = (*Engine)(nil)

func (e *Engine) parse(version string) (*semver.Version, error) {
	return semver.StrictNewVersion(strings.TrimPrefix(version, "v"))
}

// Parse parses a strict semantic version, optionally prefixed with "v".
func (e *Engine) Parse(version string) (*domain.Version, error) {
	v, err := e.parse(version)
	if err != nil {
		return nil, err
	}
	return &domain.Version{Version: v}, nil
}

// IsValid reports whether version is a strict semantic version.
func (e *Engine) IsValid(version string) bool {
	_, err := e.parse(version)
	return err == nil
}

// Prerelease returns the prerelease components of version.
func (e *Engine) Prerelease(version string) []string {
	v, err := e.parse(version)
	if err != nil || v.Prerelease() == "" {
		return nil
	}
	return strings.Split(v.Prerelease(), ".")
}

// Increment returns the next version for releaseType. Build metadata is dropped.
func (e *Engine) Increment(version string, releaseType domain.ReleaseType, prereleaseID string) (string, error) {
	v, err := e.parse(version)
	if err != nil {
		return "", fmt.Errorf("cannot increment %q: %w", version, err)
	}
	major, minor, patch := v.Major(), v.Minor(), v.Patch()
	var pre []string
	if v.Prerelease() != "" {
		pre = strings.Split(v.Prerelease(), ".")
	}
	switch releaseType {
	case domain.ReleaseMajor:
		// 1.0.0-x becomes 1.0.0, 1.1.0-x becomes 2.0.0
		if minor != 0 || patch != 0 || len(pre) == 0 {
			major, err = inc(major, "major")
		}
		minor, patch, pre = 0, 0, nil
	case domain.ReleaseMinor:
		if patch != 0 || len(pre) == 0 {
			minor, err = inc(minor, "minor")
		}
		patch, pre = 0, nil
	case domain.ReleasePatch:
		if len(pre) == 0 {
			patch, err = inc(patch, "patch")
		}
		pre = nil
	case domain.ReleasePremajor:
		major, err = inc(major, "major")
		minor, patch = 0, 0
		pre = startPrerelease(prereleaseID)
	case domain.ReleasePreminor:
		minor, err = inc(minor, "minor")
		patch = 0
		pre = startPrerelease(prereleaseID)
	case domain.ReleasePrepatch:
		patch, err = inc(patch, "patch")
		pre = startPrerelease(prereleaseID)
	case domain.ReleasePrerelease:
		if len(pre) == 0 {
			patch, err = inc(patch, "patch")
			pre = startPrerelease(prereleaseID)
			break
		}
		pre, err = bumpPrerelease(pre, prereleaseID)
	default:
		return "", fmt.Errorf("unsupported release type %q", releaseType)
	}
	if err != nil {
		return "", fmt.Errorf("cannot increment %q: %w", version, err)
	}
	next := semver.New(major, minor, patch, strings.Join(pre, "."), "")
	return next.String(), nil
}

// inc adds one to a version number, refusing to wrap around.
func inc(n uint64, part string) (uint64, error) {
	if n == math.MaxUint64 {
		return 0, fmt.Errorf("%s number %d is at its maximum", part, n)
	}
	return n + 1, nil
}

func startPrerelease(id string) []string {
	if id == "" {
		return []string{"0"}
	}
	return []string{id, "0"}
}

// bumpPrerelease increments the right-most numeric component, appending one
// when none exists, then switches channel when id differs from the current lead.
// Switching channel restarts at 0, so an exhausted counter only fails when
// the channel is kept.
func bumpPrerelease(pre []string, id string) ([]string, error) {
	next := append([]string(nil), pre...)
	var overflow error
	bumped := false
	for i := len(next) - 1; i >= 0; i-- {
		n, parseErr := strconv.ParseUint(next[i], 10, 64)
		if parseErr != nil {
			continue
		}
		m, incErr := inc(n, "prerelease")
		if incErr != nil {
			overflow = incErr
		} else {
			next[i] = strconv.FormatUint(m, 10)
		}
		bumped = true
		break
	}
	if !bumped {
		next = append(next, "0")
	}
	if id == "" || (next[0] == id && len(next) > 1 && isNumeric(next[1])) {
		return next, overflow
	}
	return []string{id, "0"}, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
