package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/compozy/nodekit/internal/domain"
)

// ResolveVersionUseCase computes the next package version from the current one.
type ResolveVersionUseCase struct {
	Engine   domain.SemverEngine
	Defaults domain.VersionDefaults
}

// Resolve returns the next version for oldVersion. An explicit version in req
// is returned verbatim once validated, even when it is lower than oldVersion.
func (uc *ResolveVersionUseCase) Resolve(
	oldVersion string,
	req domain.VersionBumpRequest,
	defaults domain.VersionDefaults,
) (string, error) {
	if req.ExplicitVersion != "" {
		if !uc.Engine.IsValid(req.ExplicitVersion) {
			return "", &domain.InvalidVersionError{Value: req.ExplicitVersion, Source: domain.VersionSourceExplicit}
		}
		return req.ExplicitVersion, nil
	}
	if !uc.Engine.IsValid(oldVersion) {
		return "", &domain.InvalidVersionError{Value: oldVersion, Source: domain.VersionSourceCurrent}
	}
	current := uc.Engine.Prerelease(oldVersion)
	releaseType := selectReleaseType(req, len(current) > 0)
	id := ""
	if releaseType.IsPre() {
		id = prereleaseID(req, current, defaults)
	}
	next, err := uc.Engine.Increment(oldVersion, releaseType, id)
	if err != nil || next == "" {
		if err == nil {
			err = errors.New("engine returned no version")
		}
		return "", &domain.VersionComputationError{Version: oldVersion, ReleaseType: releaseType, Cause: err}
	}
	return next, nil
}

// Execute resolves the next version with the configured defaults and derives
// the tag name. A bump that does not move past oldVersion is rejected.
func (uc *ResolveVersionUseCase) Execute(
	_ context.Context,
	oldVersion string,
	req domain.VersionBumpRequest,
) (*domain.VersionBumpResult, error) {
	next, err := uc.Resolve(oldVersion, req, uc.Defaults)
	if err != nil {
		return nil, err
	}
	parsed, err := uc.Engine.Parse(next)
	if err != nil {
		return nil, &domain.InvalidVersionError{Value: next, Source: domain.VersionSourceExplicit}
	}
	result := &domain.VersionBumpResult{
		OldVersion: oldVersion,
		NewVersion: next,
		TagName:    parsed.Tag(uc.Defaults.TagPrefix),
	}
	if req.ExplicitVersion != "" {
		return result, nil
	}
	result.ReleaseType = selectReleaseType(req, len(uc.Engine.Prerelease(oldVersion)) > 0)
	old, err := uc.Engine.Parse(oldVersion)
	if err != nil {
		return nil, &domain.InvalidVersionError{Value: oldVersion, Source: domain.VersionSourceCurrent}
	}
	if parsed.Compare(old) <= 0 {
		return nil, &domain.VersionComputationError{
			Version:     oldVersion,
			ReleaseType: result.ReleaseType,
			Cause:       fmt.Errorf("%s does not advance past %s", next, oldVersion),
		}
	}
	return result, nil
}

func selectReleaseType(req domain.VersionBumpRequest, isPrerelease bool) domain.ReleaseType {
	switch {
	case req.BumpMajor:
		return domain.ReleaseMajor
	case req.BumpMinor:
		return domain.ReleaseMinor
	case req.Prerelease && !isPrerelease:
		return domain.ReleasePrepatch
	case isPrerelease:
		return domain.ReleasePrerelease
	default:
		return domain.ReleasePatch
	}
}

// prereleaseID picks the channel: request, then the current channel, then config.
// A purely numeric lead such as the "0" in 1.0.0-0 is not a channel name.
func prereleaseID(req domain.VersionBumpRequest, current []string, defaults domain.VersionDefaults) string {
	if req.PrereleaseID != "" {
		return req.PrereleaseID
	}
	if len(current) > 0 && !isNumericIdentifier(current[0]) {
		return current[0]
	}
	if defaults.PrereleaseID != "" {
		return defaults.PrereleaseID
	}
	return domain.DefaultPrereleaseID
}

func isNumericIdentifier(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
