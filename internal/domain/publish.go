package domain

const (
	DefaultDistTag = "edge"
	StableDistTag  = "latest"
)

// PublishRequest holds everything needed to pick the registry dist-tags for a version.
type PublishRequest struct {
	Version     string
	ExplicitTag string
	Stable      bool
	Latest      bool
	DefaultTag  string
	StableTag   string
}

// PublishTagDecision names the primary dist-tag and the floating default tag.
// The default tag is assigned after publishing only when it differs from the
// primary one.
type PublishTagDecision struct {
	PublishTag string
	DefaultTag string
}

// NeedsDefaultTag reports whether the default tag must be assigned separately.
func (d PublishTagDecision) NeedsDefaultTag() bool {
	return d.PublishTag != d.DefaultTag
}
