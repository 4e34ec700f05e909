package service

import (
	"context"

	"github.com/compozy/nodekit/internal/domain"
)

// PackageManager names a supported JavaScript package manager.
type PackageManager string

const (
	NPM  PackageManager = "npm"
	PNPM PackageManager = "pnpm"
	Yarn PackageManager = "yarn"
	Bun  PackageManager = "bun"
)

// PublishOptions controls a registry publish.
type PublishOptions struct {
	Dir      string
	Tag      string
	Access   string
	Registry string
	DryRun   bool
}

// PackageManagerService drives the project's package manager.
type PackageManagerService interface {
	Detect(dir string, manifest *domain.Manifest, override string) (PackageManager, error)
	Install(ctx context.Context, pm PackageManager, dir string, frozen bool) error
	Publish(ctx context.Context, pm PackageManager, opts PublishOptions) error
	AddDistTag(ctx context.Context, dir, spec, tag, registry string) error
}
