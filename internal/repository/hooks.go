package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/spf13/afero"
)

// ManagedHookMarker identifies hook scripts written by nodekit.
const ManagedHookMarker = "# managed by nodekit"

const hookFilePermissions = 0o755

var (
	ErrHookNotManaged = errors.New("hook exists and is not managed by nodekit")
	ErrUnknownHook    = errors.New("unknown git hook")
)

// HookRepository writes and removes git hook scripts.
type HookRepository interface {
	Install(ctx context.Context, dir, name, command string, force bool) error
	Uninstall(ctx context.Context, dir, name string) (bool, error)
	ListManaged(ctx context.Context, dir string) ([]string, error)
}

type hookRepository struct {
	fs afero.Fs
}

// NewHookRepository creates a HookRepository on fs.
func NewHookRepository(fs afero.Fs) HookRepository {
	return &hookRepository{fs: fs}
}

func hookScript(command string) string {
	return "#!/bin/sh\n" + ManagedHookMarker + "\n" + strings.TrimSpace(command) + " \"$@\"\n"
}

func (r *hookRepository) isManaged(path string) (bool, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return false, err
	}
	return strings.Contains(string(data), ManagedHookMarker), nil
}

// Install writes the hook script. An existing hook not written by nodekit is
// only replaced when force is set.
func (r *hookRepository) Install(_ context.Context, dir, name, command string, force bool) error {
	if !domain.KnownHooks[name] {
		return fmt.Errorf("%w: %s", ErrUnknownHook, name)
	}
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("hook %s has an empty command", name)
	}
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create hooks directory: %w", err)
	}
	path := filepath.Join(dir, name)
	managed, err := r.isManaged(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("read existing hook %s: %w", name, err)
	case !managed && !force:
		return fmt.Errorf("%w: %s", ErrHookNotManaged, path)
	}
	if err := afero.WriteFile(r.fs, path, []byte(hookScript(command)), hookFilePermissions); err != nil {
		return fmt.Errorf("write hook file %s: %w", name, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := r.fs.Chmod(path, hookFilePermissions); err != nil {
		return fmt.Errorf("chmod hook file %s: %w", name, err)
	}
	return nil
}

// Uninstall removes a managed hook and reports whether anything was removed.
func (r *hookRepository) Uninstall(_ context.Context, dir, name string) (bool, error) {
	path := filepath.Join(dir, name)
	managed, err := r.isManaged(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read hook %s: %w", name, err)
	}
	if !managed {
		return false, fmt.Errorf("%w: %s", ErrHookNotManaged, path)
	}
	if err := r.fs.Remove(path); err != nil {
		return false, fmt.Errorf("remove hook %s: %w", name, err)
	}
	return true, nil
}

// ListManaged returns the names of the managed hooks in dir, sorted.
func (r *hookRepository) ListManaged(_ context.Context, dir string) ([]string, error) {
	entries, err := afero.ReadDir(r.fs, dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hooks directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !domain.KnownHooks[entry.Name()] {
			continue
		}
		if managed, err := r.isManaged(filepath.Join(dir, entry.Name())); err == nil && managed {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
