package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/compozy/nodekit/internal/repository"
	"github.com/compozy/nodekit/internal/versioning"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testManifest = "{\n  \"name\": \"demo\",\n  \"version\": \"1.0.0\",\n  \"scripts\": {\"test\": \"vitest\"}\n}\n"

type versionFixture struct {
	fs         afero.Fs
	gitRepo    *mockGitRepository
	githubRepo *mockGithubRepository
	stateRepo  *MockStateRepository
	out        *bytes.Buffer
	orch       *VersionOrchestrator
}

func newVersionFixture(t *testing.T, manifest string) *versionFixture {
	t.Helper()
	f := &versionFixture{
		fs:         afero.NewMemMapFs(),
		gitRepo:    new(mockGitRepository),
		githubRepo: new(mockGithubRepository),
		stateRepo:  new(MockStateRepository),
		out:        &bytes.Buffer{},
	}
	require.NoError(t, afero.WriteFile(f.fs, "package.json", []byte(manifest), 0o644))
	f.orch = NewVersionOrchestrator(f.gitRepo, f.githubRepo, repository.NewManifestRepository(f.fs),
		f.stateRepo, versioning.NewEngine(), zap.NewNop(), f.out)
	return f
}

func (f *versionFixture) manifest(t *testing.T) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, "package.json")
	require.NoError(t, err)
	return string(data)
}

func baseVersionConfig() VersionConfig {
	return VersionConfig{
		Defaults:      domain.VersionDefaults{TagPrefix: "v"},
		ManifestPath:  "package.json",
		CommitMessage: "chore(release): %s",
	}
}

func TestVersionOrchestrator_Execute(t *testing.T) {
	t.Run("Should only print the next version on dry-run", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		cfg := baseVersionConfig()
		cfg.DryRun = true
		cfg.GitCommit = true
		cfg.Request = domain.VersionBumpRequest{Prerelease: true}

		result, err := f.orch.Execute(context.Background(), cfg)

		require.NoError(t, err)
		assert.Equal(t, "1.0.1-edge.0", result.NewVersion)
		assert.Contains(t, f.out.String(), "1.0.0 -> 1.0.1-edge.0")
		assert.Equal(t, testManifest, f.manifest(t))
		f.gitRepo.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	})

	t.Run("Should update the manifest only when git steps are off", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		cfg := baseVersionConfig()
		cfg.Request = domain.VersionBumpRequest{BumpMinor: true}

		result, err := f.orch.Execute(context.Background(), cfg)

		require.NoError(t, err)
		assert.Equal(t, "1.1.0", result.NewVersion)
		assert.Equal(t, strings.Replace(testManifest, "1.0.0", "1.1.0", 1), f.manifest(t))
	})

	t.Run("Should commit, tag, push and release", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		g := f.gitRepo
		g.On("TagExists", mock.Anything, "v1.0.1").Return(false, nil)
		g.On("LatestVersionTag", mock.Anything, "v").Return("v1.0.0", nil)
		g.On("GetCurrentBranch", mock.Anything).Return("main", nil)
		g.On("GetHeadCommit", mock.Anything).Return("aaa", nil).Once()
		g.On("GetHeadCommit", mock.Anything).Return("bbb", nil)
		g.On("AddFiles", mock.Anything, "package.json").Return(nil)
		g.On("Commit", mock.Anything, "chore(release): 1.0.1").Return(nil)
		g.On("CreateTag", mock.Anything, "v1.0.1", "Release 1.0.1").Return(nil)
		g.On("PushBranch", mock.Anything, "main").Return(nil)
		g.On("PushTag", mock.Anything, "v1.0.1").Return(nil)
		g.On("CommitMessagesSince", mock.Anything, "v1.0.0").Return([]string{"fix: handle empty input"}, nil)
		f.githubRepo.On("CreateRelease", mock.Anything, mock.MatchedBy(func(r *domain.Release) bool {
			return r.TagName == "v1.0.1" && !r.Prerelease && strings.Contains(r.Notes, "fix: handle empty input")
		})).Return(int64(42), nil)
		f.stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		cfg := baseVersionConfig()
		cfg.GitCommit, cfg.GitTag, cfg.Push, cfg.GithubRelease, cfg.EnableRollback = true, true, true, true, true

		result, err := f.orch.Execute(context.Background(), cfg)

		require.NoError(t, err)
		assert.Equal(t, "v1.0.1", result.TagName)
		assert.Contains(t, f.manifest(t), `"version": "1.0.1"`)
		assert.Contains(t, f.out.String(), "Version 1.0.1 applied")
		g.AssertExpectations(t)
		f.githubRepo.AssertExpectations(t)
	})

	t.Run("Should roll back every completed step when the release fails", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		g := f.gitRepo
		g.On("TagExists", mock.Anything, "v1.0.1").Return(false, nil).Twice()
		g.On("TagExists", mock.Anything, "v1.0.1").Return(true, nil)
		g.On("LatestVersionTag", mock.Anything, "v").Return("", nil)
		g.On("GetCurrentBranch", mock.Anything).Return("main", nil)
		g.On("GetHeadCommit", mock.Anything).Return("aaa", nil).Once()
		g.On("GetHeadCommit", mock.Anything).Return("bbb", nil)
		g.On("AddFiles", mock.Anything, "package.json").Return(nil)
		g.On("Commit", mock.Anything, mock.Anything).Return(nil)
		g.On("CreateTag", mock.Anything, "v1.0.1", mock.Anything).Return(nil)
		g.On("PushBranch", mock.Anything, "main").Return(nil)
		g.On("PushTag", mock.Anything, "v1.0.1").Return(nil)
		g.On("CommitMessagesSince", mock.Anything, "").Return([]string{}, nil)
		g.On("DeleteRemoteTag", mock.Anything, "v1.0.1").Return(nil)
		g.On("DeleteTag", mock.Anything, "v1.0.1").Return(nil)
		g.On("ResetHard", mock.Anything, "aaa").Return(nil)
		f.githubRepo.On("CreateRelease", mock.Anything, mock.Anything).Return(int64(0), errors.New("forbidden"))
		f.stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		cfg := baseVersionConfig()
		cfg.GitCommit, cfg.GitTag, cfg.Push, cfg.GithubRelease, cfg.EnableRollback = true, true, true, true, true

		_, err := f.orch.Execute(context.Background(), cfg)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "forbidden")
		assert.Contains(t, err.Error(), "session ")
		assert.Equal(t, testManifest, f.manifest(t))
		g.AssertCalled(t, "DeleteRemoteTag", mock.Anything, "v1.0.1")
		g.AssertCalled(t, "DeleteTag", mock.Anything, "v1.0.1")
		g.AssertCalled(t, "ResetHard", mock.Anything, "aaa")
	})

	t.Run("Should refuse an existing tag before touching the manifest", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		f.gitRepo.On("TagExists", mock.Anything, "v2.0.0").Return(true, nil)
		cfg := baseVersionConfig()
		cfg.GitTag = true
		cfg.Request = domain.VersionBumpRequest{BumpMajor: true}

		_, err := f.orch.Execute(context.Background(), cfg)

		assert.ErrorContains(t, err, "tag v2.0.0 already exists")
		assert.Equal(t, testManifest, f.manifest(t))
	})

	t.Run("Should require a git repository for git steps", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "package.json", []byte(testManifest), 0o644))
		orch := NewVersionOrchestrator(nil, nil, repository.NewManifestRepository(fs), nil,
			versioning.NewEngine(), zap.NewNop(), &bytes.Buffer{})
		cfg := baseVersionConfig()
		cfg.GitCommit = true

		_, err := orch.Execute(context.Background(), cfg)

		assert.ErrorIs(t, err, repository.ErrNotGitRepository)
	})

	t.Run("Should require the tag step for GitHub releases", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		cfg := baseVersionConfig()
		cfg.GithubRelease = true

		_, err := f.orch.Execute(context.Background(), cfg)

		assert.ErrorContains(t, err, "requires the git tag step")
	})

	t.Run("Should surface an invalid manifest version", func(t *testing.T) {
		f := newVersionFixture(t, strings.Replace(testManifest, "1.0.0", "one", 1))

		_, err := f.orch.Execute(context.Background(), baseVersionConfig())

		var invalid *domain.InvalidVersionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "one", invalid.Value)
	})

	t.Run("Should print CI outputs", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		cfg := baseVersionConfig()
		cfg.DryRun = true
		cfg.CIOutput = true
		cfg.Request = domain.VersionBumpRequest{ExplicitVersion: "3.0.0-rc.1"}

		_, err := f.orch.Execute(context.Background(), cfg)

		require.NoError(t, err)
		assert.Equal(t, "old_version=1.0.0\nversion=3.0.0-rc.1\ntag=v3.0.0-rc.1\n", f.out.String())
	})
}

func TestVersionOrchestrator_Rollback(t *testing.T) {
	completedState := func() *domain.RollbackState {
		state := domain.NewRollbackState("s-1")
		state.AddOperation(domain.OperationTypeUpdateManifest)
		state.MarkOperationStarted(domain.OperationTypeUpdateManifest)
		state.MarkOperationCompleted(domain.OperationTypeUpdateManifest, map[string]any{
			keyManifestPath: "package.json",
			keyOldVersion:   "0.9.0",
		})
		state.AddOperation(domain.OperationTypeGithubRelease)
		state.MarkOperationStarted(domain.OperationTypeGithubRelease)
		state.MarkOperationCompleted(domain.OperationTypeGithubRelease, map[string]any{keyReleaseID: float64(7)})
		state.Status = domain.WorkflowStatusFailed
		return state
	}

	t.Run("Should compensate the latest session", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		state := completedState()
		f.stateRepo.On("LoadLatest", mock.Anything).Return(state, nil)
		f.stateRepo.On("Load", mock.Anything, "s-1").Return(state, nil)
		f.stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.githubRepo.On("DeleteRelease", mock.Anything, int64(7)).Return(nil)

		err := f.orch.Rollback(context.Background(), "")

		require.NoError(t, err)
		assert.Contains(t, f.manifest(t), `"version": "0.9.0"`)
		assert.Equal(t, domain.WorkflowStatusRolledBack, state.Status)
		f.githubRepo.AssertExpectations(t)
	})

	t.Run("Should treat a missing GitHub release as rolled back", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		state := completedState()
		f.stateRepo.On("Load", mock.Anything, "s-1").Return(state, nil)
		f.stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.githubRepo.On("DeleteRelease", mock.Anything, int64(7)).Return(repository.ErrReleaseNotFound)

		assert.NoError(t, f.orch.Rollback(context.Background(), "s-1"))
	})

	t.Run("Should skip sessions already rolled back", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		state := completedState()
		state.Status = domain.WorkflowStatusRolledBack
		f.stateRepo.On("Load", mock.Anything, "s-1").Return(state, nil)

		require.NoError(t, f.orch.Rollback(context.Background(), "s-1"))
		assert.Contains(t, f.out.String(), "already rolled back")
		assert.Equal(t, testManifest, f.manifest(t))
	})

	t.Run("Should fail without recorded sessions", func(t *testing.T) {
		f := newVersionFixture(t, testManifest)
		f.stateRepo.On("LoadLatest", mock.Anything).Return(nil, repository.ErrStateNotFound)

		err := f.orch.Rollback(context.Background(), "")

		assert.ErrorIs(t, err, repository.ErrStateNotFound)
	})
}
