package domain

// Release holds the metadata of a GitHub release created for a version tag.
type Release struct {
	Version    string
	TagName    string
	Name       string
	Notes      string
	Prerelease bool
}
