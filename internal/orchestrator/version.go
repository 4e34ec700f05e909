package orchestrator

import (
	"context"
	"fmt"
	"io"

	"github.com/compozy/nodekit/internal/domain"
	"github.com/compozy/nodekit/internal/repository"
	"github.com/compozy/nodekit/internal/usecase"
	"go.uber.org/zap"
)

// VersionConfig contains configuration for the version workflow.
type VersionConfig struct {
	Request       domain.VersionBumpRequest
	Defaults      domain.VersionDefaults
	ManifestPath  string
	CommitMessage string // must contain %s, replaced by the new version
	GitCommit     bool
	GitTag        bool
	Push          bool
	GithubRelease bool
	DryRun        bool
	CIOutput      bool
	// EnableRollback persists the session and compensates completed steps on failure.
	EnableRollback bool
}

// VersionOrchestrator bumps the manifest version and records the release in git and GitHub.
type VersionOrchestrator struct {
	gitRepo      repository.GitRepository
	githubRepo   repository.GithubRepository
	manifestRepo repository.ManifestRepository
	stateRepo    repository.StateRepository
	engine       domain.SemverEngine
	logger       *zap.Logger
	out          io.Writer
}

// NewVersionOrchestrator creates a version orchestrator. gitRepo may be nil
// when the project is not a git repository and no git step is requested.
func NewVersionOrchestrator(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	manifestRepo repository.ManifestRepository,
	stateRepo repository.StateRepository,
	engine domain.SemverEngine,
	logger *zap.Logger,
	out io.Writer,
) *VersionOrchestrator {
	return &VersionOrchestrator{
		gitRepo:      gitRepo,
		githubRepo:   githubRepo,
		manifestRepo: manifestRepo,
		stateRepo:    stateRepo,
		engine:       engine,
		logger:       logger,
		out:          out,
	}
}

// versionContext holds shared state for the saga steps
type versionContext struct {
	cfg         VersionConfig
	result      *domain.VersionBumpResult
	previousTag string
	branch      string
}

// Execute resolves the next version and, unless DryRun is set, applies it.
func (o *VersionOrchestrator) Execute(ctx context.Context, cfg VersionConfig) (*domain.VersionBumpResult, error) {
	ctx, cancel := context.WithTimeout(ctx, VersionWorkflowTimeout)
	defer cancel()
	p := printer{out: o.out, ciOutput: cfg.CIOutput}

	manifest, err := o.manifestRepo.Read(ctx, cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	uc := &usecase.ResolveVersionUseCase{Engine: o.engine, Defaults: cfg.Defaults}
	result, err := uc.Execute(ctx, manifest.Version, cfg.Request)
	if err != nil {
		return nil, err
	}
	p.ci("old_version=%s\n", result.OldVersion)
	p.ci("version=%s\n", result.NewVersion)
	p.ci("tag=%s\n", result.TagName)
	p.status("%s -> %s", result.OldVersion, result.NewVersion)
	if cfg.DryRun {
		p.status("🛈 Dry-run: %s was not modified", cfg.ManifestPath)
		return result, nil
	}

	wctx := &versionContext{cfg: cfg, result: result}
	if err := o.prepareGit(ctx, wctx); err != nil {
		return nil, err
	}
	saga := NewSagaExecutor(o.stateRepo, cfg.EnableRollback, o.logger, o.out)
	state := saga.GetState()
	state.OldVersion = result.OldVersion
	state.Version = result.NewVersion
	state.TagName = result.TagName
	state.Branch = wctx.branch
	state.ManifestPath = cfg.ManifestPath

	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.manifestRepo, o.logger)
	o.addUpdateManifestStep(saga, compensator, wctx)
	if cfg.GitCommit {
		o.addCommitStep(saga, compensator, wctx)
	}
	if cfg.GitTag {
		o.addTagStep(saga, compensator, wctx)
	}
	if cfg.Push {
		o.addPushStep(saga, compensator, wctx)
	}
	if cfg.GithubRelease {
		o.addGithubReleaseStep(saga, compensator, wctx)
	}
	if err := saga.Execute(ctx); err != nil {
		if cfg.EnableRollback {
			return nil, fmt.Errorf("version workflow failed (session %s): %w", saga.SessionID(), err)
		}
		return nil, fmt.Errorf("version workflow failed: %w", err)
	}
	p.ci("session_id=%s\n", saga.SessionID())
	p.status("✅ Version %s applied", result.NewVersion)
	return result, nil
}

// prepareGit validates the git preconditions before anything is modified.
func (o *VersionOrchestrator) prepareGit(ctx context.Context, wctx *versionContext) error {
	cfg := wctx.cfg
	needsGit := cfg.GitCommit || cfg.GitTag || cfg.Push || cfg.GithubRelease
	if !needsGit {
		return nil
	}
	if o.gitRepo == nil {
		return fmt.Errorf("git steps requested: %w", repository.ErrNotGitRepository)
	}
	if cfg.GithubRelease && !cfg.GitTag {
		return fmt.Errorf("a GitHub release requires the git tag step")
	}
	if cfg.GitTag {
		exists, err := o.gitRepo.TagExists(ctx, wctx.result.TagName)
		if err != nil {
			return fmt.Errorf("failed to check tag %s: %w", wctx.result.TagName, err)
		}
		if exists {
			return fmt.Errorf("tag %s already exists", wctx.result.TagName)
		}
		previous, err := o.gitRepo.LatestVersionTag(ctx, cfg.Defaults.TagPrefix)
		if err != nil {
			o.logger.Warn("failed to find previous version tag", zap.Error(err))
		}
		wctx.previousTag = previous
	}
	if cfg.Push {
		branch, err := o.gitRepo.GetCurrentBranch(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current branch: %w", err)
		}
		if err := ValidateBranchName(branch); err != nil {
			return fmt.Errorf("cannot push: %w", err)
		}
		wctx.branch = branch
	}
	return nil
}

func (o *VersionOrchestrator) addUpdateManifestStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *versionContext,
) {
	saga.AddStep(SagaStep{
		Name: "Update Manifest",
		Type: domain.OperationTypeUpdateManifest,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if err := o.manifestRepo.WriteVersion(ctx, wctx.cfg.ManifestPath, wctx.result.NewVersion); err != nil {
				return nil, fmt.Errorf("failed to write manifest: %w", err)
			}
			return map[string]any{
				keyManifestPath: wctx.cfg.ManifestPath,
				keyOldVersion:   wctx.result.OldVersion,
				keyNewVersion:   wctx.result.NewVersion,
			}, nil
		},
		Compensate: compensator.RestoreManifest,
	})
}

func (o *VersionOrchestrator) addCommitStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *versionContext,
) {
	saga.AddStep(SagaStep{
		Name: "Commit Version",
		Type: domain.OperationTypeCommit,
		Execute: func(ctx context.Context) (map[string]any, error) {
			previous, err := o.gitRepo.GetHeadCommit(ctx)
			if err != nil {
				return nil, err
			}
			if err := o.gitRepo.AddFiles(ctx, wctx.cfg.ManifestPath); err != nil {
				return nil, err
			}
			message := fmt.Sprintf(wctx.cfg.CommitMessage, wctx.result.NewVersion)
			if err := o.gitRepo.Commit(ctx, message); err != nil {
				return nil, err
			}
			head, err := o.gitRepo.GetHeadCommit(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{keyCommitSHA: head, keyPreviousSHA: previous}, nil
		},
		Compensate: compensator.ResetCommit,
	})
}

func (o *VersionOrchestrator) addTagStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *versionContext,
) {
	saga.AddStep(SagaStep{
		Name: "Create Tag",
		Type: domain.OperationTypeTag,
		Execute: func(ctx context.Context) (map[string]any, error) {
			tag := wctx.result.TagName
			// A retried attempt may find the tag from the previous one.
			exists, err := o.gitRepo.TagExists(ctx, tag)
			if err != nil {
				return nil, err
			}
			if !exists {
				if err := o.gitRepo.CreateTag(ctx, tag, "Release "+wctx.result.NewVersion); err != nil {
					return nil, err
				}
			}
			return map[string]any{keyTag: tag}, nil
		},
		Compensate: compensator.DeleteTag,
	})
}

func (o *VersionOrchestrator) addPushStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *versionContext,
) {
	saga.AddStep(SagaStep{
		Name: "Push",
		Type: domain.OperationTypePush,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if err := o.gitRepo.PushBranch(ctx, wctx.branch); err != nil {
				return nil, err
			}
			data := map[string]any{keyBranch: wctx.branch}
			if wctx.cfg.GitTag {
				if err := o.gitRepo.PushTag(ctx, wctx.result.TagName); err != nil {
					return nil, err
				}
				data[keyTag] = wctx.result.TagName
			}
			return data, nil
		},
		Compensate: compensator.DeleteRemoteTag,
	})
}

func (o *VersionOrchestrator) addGithubReleaseStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *versionContext,
) {
	saga.AddStep(SagaStep{
		Name: "Create GitHub Release",
		Type: domain.OperationTypeGithubRelease,
		Execute: func(ctx context.Context) (map[string]any, error) {
			release := &domain.Release{
				Version:    wctx.result.NewVersion,
				TagName:    wctx.result.TagName,
				Name:       wctx.result.TagName,
				Prerelease: len(o.engine.Prerelease(wctx.result.NewVersion)) > 0,
			}
			notes := &usecase.PrepareReleaseNotesUseCase{GitRepo: o.gitRepo}
			body, err := notes.Execute(ctx, release, wctx.previousTag)
			if err != nil {
				return nil, err
			}
			release.Notes = body
			id, err := o.githubRepo.CreateRelease(ctx, release)
			if err != nil {
				return nil, err
			}
			return map[string]any{keyReleaseID: id, keyTag: release.TagName}, nil
		},
		Compensate: compensator.DeleteRelease,
	})
}

// Rollback compensates a persisted version session. An empty sessionID
// selects the most recent session.
func (o *VersionOrchestrator) Rollback(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, RollbackTimeout)
	defer cancel()
	if sessionID == "" {
		state, err := o.stateRepo.LoadLatest(ctx)
		if err != nil {
			return fmt.Errorf("failed to load latest session: %w", err)
		}
		sessionID = state.SessionID
	}
	saga, err := LoadExistingSaga(ctx, o.stateRepo, sessionID, o.logger, o.out)
	if err != nil {
		return err
	}
	state := saga.GetState()
	if state.Status == domain.WorkflowStatusRolledBack {
		fmt.Fprintf(o.out, "Session %s is already rolled back\n", sessionID)
		return nil
	}
	if !state.Interrupted() {
		o.logger.Warn("rolling back a version session that was not interrupted",
			zap.String("session", sessionID), zap.String("status", string(state.Status)),
			zap.String("version", state.Version))
	}
	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.manifestRepo, o.logger)
	saga.RegisterCompensation(domain.OperationTypeUpdateManifest, "Update Manifest", compensator.RestoreManifest)
	if o.gitRepo != nil {
		saga.RegisterCompensation(domain.OperationTypeCommit, "Commit Version", compensator.ResetCommit)
		saga.RegisterCompensation(domain.OperationTypeTag, "Create Tag", compensator.DeleteTag)
		saga.RegisterCompensation(domain.OperationTypePush, "Push", compensator.DeleteRemoteTag)
	}
	saga.RegisterCompensation(domain.OperationTypeGithubRelease, "Create GitHub Release", compensator.DeleteRelease)
	if err := saga.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}
