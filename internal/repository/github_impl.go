package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/domain"
	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

// ErrReleaseNotFound is returned by GetReleaseByTag when the tag has no release.
var ErrReleaseNotFound = errors.New("release not found")

type githubRepository struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGithubRepository creates a GithubRepository after validating its inputs.
func NewGithubRepository(token, owner, repo string) (GithubRepository, error) {
	if err := config.ValidateGitHubToken(token); err != nil {
		return nil, fmt.Errorf("invalid GitHub token: %w", err)
	}
	if err := config.ValidateGitHubOwnerRepo(owner, repo); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: strings.TrimSpace(token)},
	)
	client := github.NewClient(oauth2.NewClient(context.Background(), ts))
	return &githubRepository{client: client, owner: owner, repo: repo}, nil
}

// CreateRelease publishes a GitHub release for an existing tag.
func (r *githubRepository) CreateRelease(ctx context.Context, release *domain.Release) (int64, error) {
	created, _, err := r.client.Repositories.CreateRelease(ctx, r.owner, r.repo, &github.RepositoryRelease{
		TagName:    github.Ptr(release.TagName),
		Name:       github.Ptr(release.Name),
		Body:       github.Ptr(release.Notes),
		Prerelease: github.Ptr(release.Prerelease),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create release %s: %w", release.TagName, err)
	}
	return created.GetID(), nil
}

// GetReleaseByTag returns the id of the release attached to tag.
func (r *githubRepository) GetReleaseByTag(ctx context.Context, tag string) (int64, error) {
	release, resp, err := r.client.Repositories.GetReleaseByTag(ctx, r.owner, r.repo, tag)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", ErrReleaseNotFound, tag)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get release %s: %w", tag, err)
	}
	return release.GetID(), nil
}

// DeleteRelease removes a release. The tag itself is left alone.
func (r *githubRepository) DeleteRelease(ctx context.Context, id int64) error {
	resp, err := r.client.Repositories.DeleteRelease(ctx, r.owner, r.repo, id)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete release %d: %w", id, err)
	}
	return nil
}
