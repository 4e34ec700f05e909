package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/logging"
	"github.com/compozy/nodekit/internal/orchestrator"
	"github.com/compozy/nodekit/internal/repository"
	"github.com/compozy/nodekit/internal/service"
	"github.com/compozy/nodekit/internal/versioning"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// container holds all the dependencies for the application.
type container struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer

	fsRepo       repository.FileSystemRepository
	gitRepo      repository.GitRepository
	ghRepo       repository.GithubRepository
	manifestRepo repository.ManifestRepository
	hookRepo     repository.HookRepository
	stateRepo    repository.StateRepository
	toolSvc      service.ToolService
	pmSvc        service.PackageManagerService
	engine       *versioning.Engine
}

// newContainer creates a new container with all the dependencies.
func newContainer() (*container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	fsRepo := repository.FileSystemRepository(afero.NewOsFs())
	// Only version, lint --staged, hooks and git-config need git; they
	// report ErrNotGitRepository themselves when gitRepo is nil.
	gitRepo, err := repository.NewGitRepository(".")
	if errors.Is(err, repository.ErrNotGitRepository) {
		logger.Debug("working directory is not a git repository")
		gitRepo = nil
	} else if err != nil {
		return nil, err
	}

	var ghRepo repository.GithubRepository
	if cfg.GithubToken != "" && cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		ghRepo, err = repository.NewGithubRepository(cfg.GithubToken, cfg.GithubOwner, cfg.GithubRepo)
		if err != nil {
			return nil, err
		}
	} else {
		ghRepo = repository.NewGithubNoopRepository(cfg.GithubOwner, cfg.GithubRepo)
	}

	out := io.Writer(os.Stdout)
	toolSvc := service.NewToolService(fsRepo, out)
	return &container{
		cfg:          cfg,
		logger:       logger,
		out:          out,
		fsRepo:       fsRepo,
		gitRepo:      gitRepo,
		ghRepo:       ghRepo,
		manifestRepo: repository.NewManifestRepository(fsRepo),
		hookRepo:     repository.NewHookRepository(fsRepo),
		stateRepo:    repository.NewJSONStateRepository(fsRepo, repository.DefaultStateDir, logger),
		toolSvc:      toolSvc,
		pmSvc:        service.NewPackageManagerService(fsRepo, toolSvc, cfg.NpmToken),
		engine:       versioning.NewEngine(),
	}, nil
}

// InitCommands initializes all commands with their dependencies
func InitCommands() error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		//nolint:errcheck // stderr sync fails on some terminals
		_ = c.logger.Sync()
	}

	versionOrch := orchestrator.NewVersionOrchestrator(
		c.gitRepo,
		c.ghRepo,
		c.manifestRepo,
		c.stateRepo,
		c.engine,
		c.logger,
		c.out,
	)
	lintOrch := orchestrator.NewLintOrchestrator(c.gitRepo, c.toolSvc, c.logger, c.out)
	gitSetupOrch := orchestrator.NewGitSetupOrchestrator(c.gitRepo, c.hookRepo, c.logger, c.out)

	rootCmd.AddCommand(
		NewInstallCmd(c.cfg, orchestrator.NewInstallOrchestrator(c.manifestRepo, c.pmSvc, c.out)),
		NewVersionCmd(c.cfg, versionOrch),
		NewPublishCmd(c.cfg, orchestrator.NewPublishOrchestrator(c.manifestRepo, c.pmSvc, c.engine, c.logger, c.out)),
		NewLintCmd(c.cfg, lintOrch),
		NewFormatCmd(c.cfg, lintOrch),
		NewCheckCmd(c.cfg, orchestrator.NewCheckOrchestrator(c.fsRepo, c.toolSvc, c.logger, c.out)),
		NewHooksCmd(c.cfg, gitSetupOrch),
		NewGitConfigCmd(c.cfg, gitSetupOrch),
		NewConfigCmd(c.cfg),
		NewRollbackCmd(versionOrch),
	)
	return nil
}
