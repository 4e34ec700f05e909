package domain

// KnownHooks lists the client-side hooks git runs.
var KnownHooks = map[string]bool{
	"applypatch-msg":     true,
	"pre-applypatch":     true,
	"post-applypatch":    true,
	"pre-commit":         true,
	"pre-merge-commit":   true,
	"prepare-commit-msg": true,
	"commit-msg":         true,
	"post-commit":        true,
	"pre-rebase":         true,
	"post-checkout":      true,
	"post-merge":         true,
	"pre-push":           true,
	"post-rewrite":       true,
	"pre-auto-gc":        true,
}
