package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/compozy/nodekit/internal/repository"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGitSetupFixture() (*GitSetupOrchestrator, *mockGitRepository, afero.Fs, *bytes.Buffer) {
	fs := afero.NewMemMapFs()
	gitRepo := new(mockGitRepository)
	out := &bytes.Buffer{}
	return NewGitSetupOrchestrator(gitRepo, repository.NewHookRepository(fs), zap.NewNop(), out), gitRepo, fs, out
}

func TestGitSetupOrchestrator_Hooks(t *testing.T) {
	ctx := context.Background()
	hooksDir := filepath.Join("repo", ".git", "hooks")

	t.Run("Should install configured hooks", func(t *testing.T) {
		orch, gitRepo, fs, out := newGitSetupFixture()
		gitRepo.On("HooksDir", ctx).Return(hooksDir, nil)

		err := orch.InstallHooks(ctx, map[string]string{"pre-commit": "nodekit lint --staged", "pre-push": "nodekit check"}, false)

		require.NoError(t, err)
		data, err := afero.ReadFile(fs, filepath.Join(hooksDir, "pre-commit"))
		require.NoError(t, err)
		assert.Equal(t, "#!/bin/sh\n# managed by nodekit\nnodekit lint --staged \"$@\"\n", string(data))
		assert.Contains(t, out.String(), "installed pre-push")
	})

	t.Run("Should keep unmanaged hooks unless forced", func(t *testing.T) {
		orch, gitRepo, fs, _ := newGitSetupFixture()
		gitRepo.On("HooksDir", ctx).Return(hooksDir, nil)
		require.NoError(t, afero.WriteFile(fs, filepath.Join(hooksDir, "pre-commit"), []byte("#!/bin/sh\nhusky\n"), 0o755))

		err := orch.InstallHooks(ctx, map[string]string{"pre-commit": "nodekit lint --staged"}, false)
		assert.ErrorIs(t, err, repository.ErrHookNotManaged)
		data, _ := afero.ReadFile(fs, filepath.Join(hooksDir, "pre-commit"))
		assert.Contains(t, string(data), "husky")

		require.NoError(t, orch.InstallHooks(ctx, map[string]string{"pre-commit": "nodekit lint --staged"}, true))
		data, _ = afero.ReadFile(fs, filepath.Join(hooksDir, "pre-commit"))
		assert.Contains(t, string(data), "# managed by nodekit")
	})

	t.Run("Should uninstall only managed hooks", func(t *testing.T) {
		orch, gitRepo, fs, out := newGitSetupFixture()
		gitRepo.On("HooksDir", ctx).Return(hooksDir, nil)
		require.NoError(t, orch.InstallHooks(ctx, map[string]string{"commit-msg": "commitlint --edit"}, false))
		require.NoError(t, afero.WriteFile(fs, filepath.Join(hooksDir, "pre-push"), []byte("#!/bin/sh\n"), 0o755))

		require.NoError(t, orch.UninstallHooks(ctx))

		exists, _ := afero.Exists(fs, filepath.Join(hooksDir, "commit-msg"))
		assert.False(t, exists)
		exists, _ = afero.Exists(fs, filepath.Join(hooksDir, "pre-push"))
		assert.True(t, exists)
		assert.Contains(t, out.String(), "removed commit-msg")
	})

	t.Run("Should require a git repository", func(t *testing.T) {
		orch := NewGitSetupOrchestrator(nil, repository.NewHookRepository(afero.NewMemMapFs()), zap.NewNop(), &bytes.Buffer{})
		assert.ErrorIs(t, orch.InstallHooks(ctx, map[string]string{"pre-commit": "x"}, false), repository.ErrNotGitRepository)
		assert.ErrorIs(t, orch.UninstallHooks(ctx), repository.ErrNotGitRepository)
	})
}

func TestGitSetupOrchestrator_ApplyGitConfig(t *testing.T) {
	ctx := context.Background()
	t.Run("Should set only differing values", func(t *testing.T) {
		orch, gitRepo, _, out := newGitSetupFixture()
		gitRepo.On("GetConfigValue", ctx, "core.autocrlf").Return("input", nil)
		gitRepo.On("GetConfigValue", ctx, "pull.rebase").Return("", nil)
		gitRepo.On("SetConfigValue", ctx, "pull.rebase", "true").Return(nil)

		err := orch.ApplyGitConfig(ctx, map[string]string{"pull.rebase": "true", "core.autocrlf": "input"})

		require.NoError(t, err)
		gitRepo.AssertNotCalled(t, "SetConfigValue", ctx, "core.autocrlf", mock.Anything)
		assert.Contains(t, out.String(), `pull.rebase = "true"`)
	})
	t.Run("Should wrap write failures", func(t *testing.T) {
		orch, gitRepo, _, _ := newGitSetupFixture()
		gitRepo.On("GetConfigValue", ctx, "pull.rebase").Return("", nil)
		gitRepo.On("SetConfigValue", ctx, "pull.rebase", "true").Return(errors.New("locked"))

		err := orch.ApplyGitConfig(ctx, map[string]string{"pull.rebase": "true"})

		assert.ErrorContains(t, err, "failed to set pull.rebase")
	})
}
