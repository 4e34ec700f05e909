package domain

// Manifest is the subset of package.json nodekit reads.
type Manifest struct {
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	Private        bool              `json:"private"`
	PackageManager string            `json:"packageManager,omitempty"`
	Scripts        map[string]string `json:"scripts,omitempty"`
	Path           string            `json:"-"`
}

// Spec returns the registry spec "name@version".
func (m *Manifest) Spec() string {
	return m.Name + "@" + m.Version
}
