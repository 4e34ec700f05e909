package repository

import (
	"context"

	"github.com/compozy/nodekit/internal/domain"
)

// GithubRepository defines the GitHub API operations used for releases.
type GithubRepository interface {
	CreateRelease(ctx context.Context, release *domain.Release) (int64, error)
	GetReleaseByTag(ctx context.Context, tag string) (int64, error)
	DeleteRelease(ctx context.Context, id int64) error
}
