package usecase

import (
	"github.com/compozy/nodekit/internal/domain"
)

// ResolvePublishTagUseCase picks the registry dist-tags for a publish.
type ResolvePublishTagUseCase struct {
	Engine domain.SemverEngine
}

// ResolveTag returns the primary dist-tag. An explicit tag wins over the
// stable and latest flags.
func (uc *ResolvePublishTagUseCase) ResolveTag(version string, req domain.PublishRequest) string {
	if req.ExplicitTag != "" {
		return req.ExplicitTag
	}
	if req.Stable || req.Latest {
		return stableTag(req)
	}
	if pre := uc.Engine.Prerelease(version); len(pre) > 0 {
		if lead := pre[0]; lead != "" && !isNumericIdentifier(lead) {
			return lead
		}
		return uc.DefaultTag(req)
	}
	return stableTag(req)
}

// DefaultTag returns the floating tag updated on every publish.
func (uc *ResolvePublishTagUseCase) DefaultTag(req domain.PublishRequest) string {
	if req.DefaultTag != "" {
		return req.DefaultTag
	}
	return domain.DefaultDistTag
}

// Resolve combines ResolveTag and DefaultTag for req.Version.
func (uc *ResolvePublishTagUseCase) Resolve(req domain.PublishRequest) domain.PublishTagDecision {
	return domain.PublishTagDecision{
		PublishTag: uc.ResolveTag(req.Version, req),
		DefaultTag: uc.DefaultTag(req),
	}
}

func stableTag(req domain.PublishRequest) string {
	if req.StableTag != "" {
		return req.StableTag
	}
	return domain.StableDistTag
}
