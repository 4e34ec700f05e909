package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/spf13/afero"
)

// lockfiles maps lockfile names to their package manager, checked in order.
var lockfiles = []struct {
	name string
	pm   PackageManager
}{
	{"pnpm-lock.yaml", PNPM},
	{"yarn.lock", Yarn},
	{"bun.lockb", Bun},
	{"bun.lock", Bun},
	{"package-lock.json", NPM},
	{"npm-shrinkwrap.json", NPM},
}

type packageManagerService struct {
	fs       afero.Fs
	tools    ToolService
	npmToken string
}

// NewPackageManagerService creates a PackageManagerService. npmToken is
// forwarded as NODE_AUTH_TOKEN when that variable is not already set.
func NewPackageManagerService(fs afero.Fs, tools ToolService, npmToken string) PackageManagerService {
	return &packageManagerService{fs: fs, tools: tools, npmToken: npmToken}
}

// Detect picks the package manager from the override, the manifest's
// packageManager field, then the lockfile present in dir. npm is the fallback.
func (s *packageManagerService) Detect(dir string, manifest *domain.Manifest, override string) (PackageManager, error) {
	if override != "" {
		return parsePackageManager(override)
	}
	if manifest != nil && manifest.PackageManager != "" {
		name, _, _ := strings.Cut(manifest.PackageManager, "@")
		return parsePackageManager(name)
	}
	for _, lf := range lockfiles {
		if ok, _ := afero.Exists(s.fs, filepath.Join(dir, lf.name)); ok {
			return lf.pm, nil
		}
	}
	return NPM, nil
}

func parsePackageManager(name string) (PackageManager, error) {
	switch pm := PackageManager(strings.ToLower(strings.TrimSpace(name))); pm {
	case NPM, PNPM, Yarn, Bun:
		return pm, nil
	default:
		return "", fmt.Errorf("unsupported package manager %q", name)
	}
}

func (s *packageManagerService) env() []string {
	if s.npmToken != "" && os.Getenv("NODE_AUTH_TOKEN") == "" {
		return []string{"NODE_AUTH_TOKEN=" + s.npmToken}
	}
	return nil
}

// validateDir refuses to run registry commands outside a package directory.
func (s *packageManagerService) validateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("package directory cannot be empty")
	}
	if strings.Contains(filepath.Clean(dir), "..") {
		return fmt.Errorf("path traversal detected: %s", dir)
	}
	if ok, _ := afero.Exists(s.fs, filepath.Join(dir, "package.json")); !ok {
		return fmt.Errorf("package.json not found in directory: %s", dir)
	}
	return nil
}

func installArgs(pm PackageManager, frozen bool) []string {
	switch pm {
	case NPM:
		if frozen {
			return []string{"ci"}
		}
		return []string{"install"}
	default:
		if frozen {
			return []string{"install", "--frozen-lockfile"}
		}
		return []string{"install"}
	}
}

// Install runs the package manager's install command.
func (s *packageManagerService) Install(ctx context.Context, pm PackageManager, dir string, frozen bool) error {
	_, err := s.tools.Run(ctx, ToolInvocation{
		Name:    string(pm),
		Args:    installArgs(pm, frozen),
		Dir:     dir,
		Env:     s.env(),
		Stream:  true,
		Timeout: DefaultInstallTimeout,
	})
	if err != nil {
		return fmt.Errorf("%s install failed: %w", pm, err)
	}
	return nil
}

func publishArgs(pm PackageManager, opts PublishOptions) (string, []string) {
	name := string(NPM)
	args := []string{"publish", "--tag", opts.Tag}
	if pm == PNPM {
		name = string(PNPM)
		args = append(args, "--no-git-checks")
	}
	if opts.Access != "" {
		args = append(args, "--access", opts.Access)
	}
	if opts.Registry != "" {
		args = append(args, "--registry", opts.Registry)
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	return name, args
}

// Publish publishes the package in opts.Dir under opts.Tag. yarn and bun
// projects publish through npm.
func (s *packageManagerService) Publish(ctx context.Context, pm PackageManager, opts PublishOptions) error {
	if err := s.validateDir(opts.Dir); err != nil {
		return fmt.Errorf("invalid package path: %w", err)
	}
	if opts.Tag == "" {
		return fmt.Errorf("publish tag cannot be empty")
	}
	name, args := publishArgs(pm, opts)
	_, err := s.tools.Run(ctx, ToolInvocation{
		Name:    name,
		Args:    args,
		Dir:     opts.Dir,
		Env:     s.env(),
		Stream:  true,
		Timeout: DefaultNPMTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to publish package at %s: %w", opts.Dir, err)
	}
	return nil
}

// AddDistTag points tag at spec ("name@version") in the registry.
func (s *packageManagerService) AddDistTag(ctx context.Context, dir, spec, tag, registry string) error {
	args := []string{"dist-tag", "add", spec, tag}
	if registry != "" {
		args = append(args, "--registry", registry)
	}
	_, err := s.tools.Run(ctx, ToolInvocation{
		Name:    string(NPM),
		Args:    args,
		Dir:     dir,
		Env:     s.env(),
		Timeout: DefaultNPMTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to add dist-tag %s to %s: %w", tag, spec, err)
	}
	return nil
}
