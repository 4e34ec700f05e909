package repository

import (
	"context"
	"errors"
)

// ErrNotGitRepository is returned when nodekit runs outside a git work tree.
var ErrNotGitRepository = errors.New("not a git repository")

// GitRepository defines the git operations nodekit needs.
type GitRepository interface {
	// Tags
	LatestVersionTag(ctx context.Context, prefix string) (string, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	CreateTag(ctx context.Context, tag, msg string) error
	DeleteTag(ctx context.Context, tag string) error
	PushTag(ctx context.Context, tag string) error
	DeleteRemoteTag(ctx context.Context, tag string) error
	// Branches and commits
	GetCurrentBranch(ctx context.Context) (string, error)
	PushBranch(ctx context.Context, name string) error
	AddFiles(ctx context.Context, pattern string) error
	Commit(ctx context.Context, message string) error
	GetHeadCommit(ctx context.Context) (string, error)
	ResetHard(ctx context.Context, ref string) error
	CommitMessagesSince(ctx context.Context, tag string) ([]string, error)
	StagedFiles(ctx context.Context) ([]string, error)
	// Configuration and hooks
	GetConfigValue(ctx context.Context, key string) (string, error)
	SetConfigValue(ctx context.Context, key, value string) error
	HooksDir(ctx context.Context) (string, error)
	// Root is the absolute path of the work tree.
	Root() string
}
