package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/compozy/nodekit/internal/repository"
	"github.com/compozy/nodekit/internal/service"
	"github.com/compozy/nodekit/internal/usecase"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrPrivatePackage is returned when publishing a manifest marked private.
var ErrPrivatePackage = errors.New("package is private")

// PublishConfig contains configuration for the publish workflow.
type PublishConfig struct {
	ManifestPath   string
	PackageManager string // overrides detection when set
	ExplicitTag    string
	Stable         bool
	Latest         bool
	DefaultTag     string
	StableTag      string
	Access         string
	Registry       string
	DryRun         bool
	CIOutput       bool
}

// PublishOrchestrator publishes the package and maintains its dist-tags.
type PublishOrchestrator struct {
	manifestRepo repository.ManifestRepository
	pmSvc        service.PackageManagerService
	engine       domain.SemverEngine
	logger       *zap.Logger
	out          io.Writer
}

// NewPublishOrchestrator creates a new publish orchestrator.
func NewPublishOrchestrator(
	manifestRepo repository.ManifestRepository,
	pmSvc service.PackageManagerService,
	engine domain.SemverEngine,
	logger *zap.Logger,
	out io.Writer,
) *PublishOrchestrator {
	return &PublishOrchestrator{
		manifestRepo: manifestRepo,
		pmSvc:        pmSvc,
		engine:       engine,
		logger:       logger,
		out:          out,
	}
}

// Execute publishes under the resolved tag, then points the default tag at
// the same version. A failure of the second step is reported but not fatal.
func (o *PublishOrchestrator) Execute(ctx context.Context, cfg PublishConfig) (*domain.PublishTagDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultWorkflowTimeout)
	defer cancel()
	p := printer{out: o.out, ciOutput: cfg.CIOutput}

	manifest, err := o.manifestRepo.Read(ctx, cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if manifest.Private {
		return nil, fmt.Errorf("%w: %s cannot be published", ErrPrivatePackage, cfg.ManifestPath)
	}
	if manifest.Name == "" {
		return nil, fmt.Errorf("manifest %s has no name", cfg.ManifestPath)
	}
	if !o.engine.IsValid(manifest.Version) {
		return nil, &domain.InvalidVersionError{Value: manifest.Version, Source: domain.VersionSourceCurrent}
	}
	uc := &usecase.ResolvePublishTagUseCase{Engine: o.engine}
	decision := uc.Resolve(domain.PublishRequest{
		Version:     manifest.Version,
		ExplicitTag: cfg.ExplicitTag,
		Stable:      cfg.Stable,
		Latest:      cfg.Latest,
		DefaultTag:  cfg.DefaultTag,
		StableTag:   cfg.StableTag,
	})
	dir := filepath.Dir(cfg.ManifestPath)
	pm, err := o.pmSvc.Detect(dir, manifest, cfg.PackageManager)
	if err != nil {
		return nil, err
	}
	p.ci("package=%s\n", manifest.Name)
	p.ci("version=%s\n", manifest.Version)
	p.ci("tag=%s\n", decision.PublishTag)
	p.status("📦 Publishing %s with %s under %q", manifest.Spec(), pm, decision.PublishTag)

	err = o.pmSvc.Publish(ctx, pm, service.PublishOptions{
		Dir:      dir,
		Tag:      decision.PublishTag,
		Access:   cfg.Access,
		Registry: cfg.Registry,
		DryRun:   cfg.DryRun,
	})
	if err != nil {
		return nil, err
	}
	if decision.NeedsDefaultTag() {
		o.assignDefaultTag(ctx, p, cfg, dir, manifest.Spec(), decision.DefaultTag)
	}
	p.status("✅ Published %s", manifest.Spec())
	return &decision, nil
}

func (o *PublishOrchestrator) assignDefaultTag(
	ctx context.Context,
	p printer,
	cfg PublishConfig,
	dir, spec, tag string,
) {
	if cfg.DryRun {
		p.status("🛈 Dry-run: would point %q at %s", tag, spec)
		return
	}
	backoff := retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(o.pmSvc.AddDistTag(ctx, dir, spec, tag, cfg.Registry))
	})
	if err != nil {
		o.logger.Warn("failed to assign default dist-tag", zap.String("spec", spec),
			zap.String("tag", tag), zap.Error(err))
		p.status("⚠️ Published, but %q was not updated: %v", tag, err)
		return
	}
	p.ci("default_tag=%s\n", tag)
	p.status("🏷️ %s now also points at %s", tag, spec)
}
