package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/nodekit/internal/repository"
	"go.uber.org/zap"
)

// Rollback data keys shared by the version steps and their compensations.
const (
	keyManifestPath = "manifest_path"
	keyOldVersion   = "old_version"
	keyNewVersion   = "new_version"
	keyCommitSHA    = "commit_sha"
	keyPreviousSHA  = "previous_sha"
	keyTag          = "tag"
	keyBranch       = "branch"
	keyReleaseID    = "release_id"
)

// CompensatingActions provides idempotent undo operations for the version steps.
type CompensatingActions struct {
	gitRepo      repository.GitRepository
	githubRepo   repository.GithubRepository
	manifestRepo repository.ManifestRepository
	logger       *zap.Logger
}

// NewCompensatingActions creates a new compensating actions handler
func NewCompensatingActions(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	manifestRepo repository.ManifestRepository,
	logger *zap.Logger,
) *CompensatingActions {
	return &CompensatingActions{
		gitRepo:      gitRepo,
		githubRepo:   githubRepo,
		manifestRepo: manifestRepo,
		logger:       logger,
	}
}

// RestoreManifest writes the previous version back into the manifest.
func (ca *CompensatingActions) RestoreManifest(ctx context.Context, rollbackData map[string]any) error {
	path := stringValue(rollbackData, keyManifestPath)
	oldVersion := stringValue(rollbackData, keyOldVersion)
	if path == "" || oldVersion == "" {
		return fmt.Errorf("manifest_path and old_version are required to restore the manifest")
	}
	manifest, err := ca.manifestRepo.Read(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read manifest for restore: %w", err)
	}
	if manifest.Version == oldVersion {
		return nil
	}
	return ca.manifestRepo.WriteVersion(ctx, path, oldVersion)
}

// ResetCommit moves HEAD back to the commit preceding the release commit,
// as long as the release commit is still HEAD.
func (ca *CompensatingActions) ResetCommit(ctx context.Context, rollbackData map[string]any) error {
	commitSHA := stringValue(rollbackData, keyCommitSHA)
	previousSHA := stringValue(rollbackData, keyPreviousSHA)
	if commitSHA == "" || previousSHA == "" {
		return nil
	}
	currentHead, err := ca.gitRepo.GetHeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current HEAD: %w", err)
	}
	if currentHead != commitSHA {
		ca.logger.Warn("release commit is no longer HEAD, skipping reset",
			zap.String("commit", commitSHA), zap.String("head", currentHead))
		return nil
	}
	if err := ca.gitRepo.ResetHard(ctx, previousSHA); err != nil {
		return fmt.Errorf("failed to reset commit %s: %w", commitSHA, err)
	}
	return nil
}

// DeleteTag removes the version tag locally when it still exists.
func (ca *CompensatingActions) DeleteTag(ctx context.Context, rollbackData map[string]any) error {
	tag := stringValue(rollbackData, keyTag)
	if tag == "" {
		return nil
	}
	exists, err := ca.gitRepo.TagExists(ctx, tag)
	if err != nil {
		return fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	if !exists {
		return nil
	}
	return ca.gitRepo.DeleteTag(ctx, tag)
}

// DeleteRemoteTag removes a pushed version tag from origin. The pushed branch
// commit stays on the remote and is only reported.
func (ca *CompensatingActions) DeleteRemoteTag(ctx context.Context, rollbackData map[string]any) error {
	if branch := stringValue(rollbackData, keyBranch); branch != "" {
		ca.logger.Warn("release commit remains on the remote branch", zap.String("branch", branch))
	}
	tag := stringValue(rollbackData, keyTag)
	if tag == "" {
		return nil
	}
	if err := ca.gitRepo.DeleteRemoteTag(ctx, tag); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	return nil
}

// DeleteRelease removes the GitHub release created for the version.
func (ca *CompensatingActions) DeleteRelease(ctx context.Context, rollbackData map[string]any) error {
	id := int64Value(rollbackData, keyReleaseID)
	if id == 0 {
		return nil
	}
	err := ca.githubRepo.DeleteRelease(ctx, id)
	if errors.Is(err, repository.ErrReleaseNotFound) {
		return nil
	}
	return err
}

func stringValue(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// int64Value accepts the float64 that JSON decoding produces for numbers.
func int64Value(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
