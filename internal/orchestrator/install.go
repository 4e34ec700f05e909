package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/compozy/nodekit/internal/repository"
	"github.com/compozy/nodekit/internal/service"
)

// InstallConfig contains configuration for dependency installation.
type InstallConfig struct {
	ManifestPath   string
	PackageManager string
	Frozen         bool
}

// InstallOrchestrator installs dependencies with the detected package manager.
type InstallOrchestrator struct {
	manifestRepo repository.ManifestRepository
	pmSvc        service.PackageManagerService
	out          io.Writer
}

func NewInstallOrchestrator(
	manifestRepo repository.ManifestRepository,
	pmSvc service.PackageManagerService,
	out io.Writer,
) *InstallOrchestrator {
	return &InstallOrchestrator{manifestRepo: manifestRepo, pmSvc: pmSvc, out: out}
}

func (o *InstallOrchestrator) Execute(ctx context.Context, cfg InstallConfig) (service.PackageManager, error) {
	manifest, err := o.manifestRepo.Read(ctx, cfg.ManifestPath)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}
	dir := filepath.Dir(cfg.ManifestPath)
	pm, err := o.pmSvc.Detect(dir, manifest, cfg.PackageManager)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(o.out, "📥 Installing dependencies with %s\n", pm)
	if err := o.pmSvc.Install(ctx, pm, dir, cfg.Frozen); err != nil {
		return pm, err
	}
	return pm, nil
}
