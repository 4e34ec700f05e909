package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/compozy/nodekit/internal/repository"
	"github.com/compozy/nodekit/internal/service"
	"github.com/compozy/nodekit/internal/usecase"
	"go.uber.org/zap"
)

// ToolRunConfig runs one configured tool, such as the linter or formatter.
type ToolRunConfig struct {
	Label string
	Dir   string
	Tool  ToolCommand
	Flag  string // appended when set, e.g. --fix or --check
}

// LintStagedConfig maps glob patterns to the commands run on matching staged files.
type LintStagedConfig struct {
	Rules    map[string][]string
	CIOutput bool
}

// LintOrchestrator runs the project's linter and formatter.
type LintOrchestrator struct {
	gitRepo repository.GitRepository
	tools   service.ToolService
	logger  *zap.Logger
	out     io.Writer
}

// NewLintOrchestrator creates a lint orchestrator. gitRepo is only needed for staged runs.
func NewLintOrchestrator(
	gitRepo repository.GitRepository,
	tools service.ToolService,
	logger *zap.Logger,
	out io.Writer,
) *LintOrchestrator {
	return &LintOrchestrator{gitRepo: gitRepo, tools: tools, logger: logger, out: out}
}

// Run executes a configured tool with its output streamed.
func (o *LintOrchestrator) Run(ctx context.Context, cfg ToolRunConfig) error {
	if cfg.Tool.Command == "" {
		return fmt.Errorf("no %s command configured", cfg.Label)
	}
	_, err := o.tools.Run(ctx, service.ToolInvocation{
		Name:    cfg.Tool.Command,
		Args:    cfg.Tool.With(cfg.Flag),
		Dir:     cfg.Dir,
		Stream:  true,
		Timeout: service.DefaultToolTimeout,
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", cfg.Label, err)
	}
	return nil
}

// RunStaged runs the lint_staged commands on the staged files they match,
// then stages the files again so fixes land in the commit.
func (o *LintOrchestrator) RunStaged(ctx context.Context, cfg LintStagedConfig) error {
	if o.gitRepo == nil {
		return fmt.Errorf("lint --staged: %w", repository.ErrNotGitRepository)
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultWorkflowTimeout)
	defer cancel()
	p := printer{out: o.out, ciOutput: cfg.CIOutput}
	staged, err := o.gitRepo.StagedFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list staged files: %w", err)
	}
	uc := &usecase.LintStagedUseCase{}
	tasks, err := uc.Plan(staged, cfg.Rules)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		p.status("No staged files match lint_staged patterns")
		return nil
	}
	root := o.gitRepo.Root()
	for _, task := range tasks {
		fields := strings.Fields(task.Command)
		p.status("▶ %s (%d files)", task.Command, len(task.Files))
		_, err := o.tools.Run(ctx, service.ToolInvocation{
			Name:    fields[0],
			Args:    append(fields[1:], task.Files...),
			Dir:     root,
			Stream:  true,
			Timeout: service.DefaultToolTimeout,
		})
		if err != nil {
			return fmt.Errorf("%q failed for %s: %w", task.Command, task.Pattern, err)
		}
		for _, file := range task.Files {
			if err := o.gitRepo.AddFiles(ctx, filepath.Join(root, file)); err != nil {
				return fmt.Errorf("failed to re-stage %s: %w", file, err)
			}
		}
		o.logger.Debug("lint_staged task finished", zap.String("pattern", task.Pattern),
			zap.String("command", task.Command), zap.Int("files", len(task.Files)))
	}
	p.status("✅ lint_staged completed")
	return nil
}
