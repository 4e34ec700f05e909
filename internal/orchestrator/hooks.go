package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/compozy/nodekit/internal/repository"
	"go.uber.org/zap"
)

// GitSetupOrchestrator manages the git hooks and repository config entries nodekit owns.
type GitSetupOrchestrator struct {
	gitRepo  repository.GitRepository
	hookRepo repository.HookRepository
	logger   *zap.Logger
	out      io.Writer
}

// NewGitSetupOrchestrator creates a new git setup orchestrator.
func NewGitSetupOrchestrator(
	gitRepo repository.GitRepository,
	hookRepo repository.HookRepository,
	logger *zap.Logger,
	out io.Writer,
) *GitSetupOrchestrator {
	return &GitSetupOrchestrator{gitRepo: gitRepo, hookRepo: hookRepo, logger: logger, out: out}
}

// InstallHooks writes one managed script per configured hook. Unmanaged
// scripts are skipped with a warning unless force is set; the call fails if
// any hook could not be installed.
func (o *GitSetupOrchestrator) InstallHooks(ctx context.Context, hooks map[string]string, force bool) error {
	dir, err := o.hooksDir(ctx)
	if err != nil {
		return err
	}
	if len(hooks) == 0 {
		fmt.Fprintln(o.out, "No hooks configured")
		return nil
	}
	var errs []error
	for _, name := range sortedKeys(hooks) {
		err := o.hookRepo.Install(ctx, dir, name, hooks[name], force)
		switch {
		case errors.Is(err, repository.ErrHookNotManaged):
			o.logger.Warn("skipping hook not managed by nodekit, use --force to replace it", zap.String("hook", name))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		default:
			fmt.Fprintf(o.out, "✅ installed %s\n", name)
		}
	}
	return errors.Join(errs...)
}

// UninstallHooks removes every nodekit-managed hook script.
func (o *GitSetupOrchestrator) UninstallHooks(ctx context.Context) error {
	dir, err := o.hooksDir(ctx)
	if err != nil {
		return err
	}
	names, err := o.hookRepo.ListManaged(ctx, dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(o.out, "No managed hooks found")
		return nil
	}
	for _, name := range names {
		removed, err := o.hookRepo.Uninstall(ctx, dir, name)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		if removed {
			fmt.Fprintf(o.out, "🗑️ removed %s\n", name)
		}
	}
	return nil
}

// ApplyGitConfig writes the configured entries into the repository config,
// leaving keys that already hold the wanted value untouched.
func (o *GitSetupOrchestrator) ApplyGitConfig(ctx context.Context, entries map[string]string) error {
	if o.gitRepo == nil {
		return fmt.Errorf("git-config: %w", repository.ErrNotGitRepository)
	}
	for _, key := range sortedKeys(entries) {
		current, err := o.gitRepo.GetConfigValue(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if current == entries[key] {
			fmt.Fprintf(o.out, "= %s already %q\n", key, current)
			continue
		}
		if err := o.gitRepo.SetConfigValue(ctx, key, entries[key]); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		fmt.Fprintf(o.out, "✅ %s = %q\n", key, entries[key])
	}
	return nil
}

func (o *GitSetupOrchestrator) hooksDir(ctx context.Context) (string, error) {
	if o.gitRepo == nil {
		return "", fmt.Errorf("hooks: %w", repository.ErrNotGitRepository)
	}
	dir, err := o.gitRepo.HooksDir(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to locate hooks directory: %w", err)
	}
	return dir, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
