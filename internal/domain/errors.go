package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidVersion is matched by every InvalidVersionError through errors.Is.
var ErrInvalidVersion = errors.New("invalid version")

// Version sources reported by InvalidVersionError.
const (
	VersionSourceCurrent  = "current"
	VersionSourceExplicit = "explicit"
)

// InvalidVersionError reports a version string that failed semver validation.
type InvalidVersionError struct {
	Value  string
	Source string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid %s version %q: not a valid semantic version", e.Source, e.Value)
}

func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersion
}

// VersionComputationError reports that the engine could not produce a next version.
type VersionComputationError struct {
	Version     string
	ReleaseType ReleaseType
	Cause       error
}

func (e *VersionComputationError) Error() string {
	msg := fmt.Sprintf("failed to compute %s increment of %q", e.ReleaseType, e.Version)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *VersionComputationError) Unwrap() error {
	return e.Cause
}
