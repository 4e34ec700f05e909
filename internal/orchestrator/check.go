package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/compozy/nodekit/internal/service"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ToolCommand is a configured executable with its base arguments.
type ToolCommand struct {
	Command string
	Args    []string
}

// With returns the argument list extended by flag when it is set.
func (t ToolCommand) With(flag string) []string {
	args := append([]string(nil), t.Args...)
	if flag != "" {
		args = append(args, flag)
	}
	return args
}

// NamedCommand is a shell command from check.commands.
type NamedCommand struct {
	Name string
	Run  string
}

// CheckConfig contains configuration for the check workflow.
type CheckConfig struct {
	Dir           string
	RequiredFiles []string
	Lint          *ToolCommand // nil skips linting
	Format        *ToolCommand // nil skips the format check
	FormatFlag    string       // check-only flag appended to Format
	Commands      []NamedCommand
	CIOutput      bool
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string
	Err      error
	Output   string
	Duration time.Duration
}

// CheckOrchestrator runs every project check concurrently and reports all failures.
type CheckOrchestrator struct {
	fs     afero.Fs
	tools  service.ToolService
	logger *zap.Logger
	out    io.Writer
}

// NewCheckOrchestrator creates a new check orchestrator.
func NewCheckOrchestrator(fs afero.Fs, tools service.ToolService, logger *zap.Logger, out io.Writer) *CheckOrchestrator {
	return &CheckOrchestrator{fs: fs, tools: tools, logger: logger, out: out}
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// Execute waits for every check to settle, prints one line per check in
// declaration order and joins the failures.
func (o *CheckOrchestrator) Execute(ctx context.Context, cfg CheckConfig) ([]CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultWorkflowTimeout)
	defer cancel()
	checks := o.buildChecks(cfg)
	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := time.Now()
			output, err := c.run(ctx)
			results[i] = CheckResult{Name: c.name, Err: err, Output: output, Duration: time.Since(start)}
			o.logger.Debug("check finished", zap.String("check", c.name), zap.Duration("duration", results[i].Duration),
				zap.Error(err))
			return nil
		})
	}
	_ = g.Wait()

	p := printer{out: o.out, ciOutput: cfg.CIOutput}
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
			p.status("❌ %s (%s)", r.Name, r.Duration.Round(time.Millisecond))
			if out := strings.TrimSpace(r.Output); out != "" {
				p.status("%s", indent(out))
			}
			p.ci("check_%s=failed\n", ciKey(r.Name))
			continue
		}
		p.status("✅ %s (%s)", r.Name, r.Duration.Round(time.Millisecond))
		p.ci("check_%s=passed\n", ciKey(r.Name))
	}
	if err := errors.Join(errs...); err != nil {
		return results, fmt.Errorf("%d of %d checks failed: %w", len(errs), len(results), err)
	}
	return results, nil
}

func (o *CheckOrchestrator) buildChecks(cfg CheckConfig) []check {
	var checks []check
	if len(cfg.RequiredFiles) > 0 {
		checks = append(checks, check{name: "required files", run: func(context.Context) (string, error) {
			return "", o.checkRequiredFiles(cfg.Dir, cfg.RequiredFiles)
		}})
	}
	if cfg.Lint != nil {
		lint := *cfg.Lint
		checks = append(checks, check{name: "lint", run: func(ctx context.Context) (string, error) {
			return o.runTool(ctx, cfg.Dir, lint.Command, lint.Args)
		}})
	}
	if cfg.Format != nil {
		format := *cfg.Format
		checks = append(checks, check{name: "format", run: func(ctx context.Context) (string, error) {
			return o.runTool(ctx, cfg.Dir, format.Command, format.With(cfg.FormatFlag))
		}})
	}
	for _, cmd := range cfg.Commands {
		checks = append(checks, check{name: cmd.Name, run: func(ctx context.Context) (string, error) {
			res, err := o.tools.Shell(ctx, cfg.Dir, cmd.Run)
			return outputOf(res), err
		}})
	}
	return checks
}

func (o *CheckOrchestrator) checkRequiredFiles(dir string, files []string) error {
	var missing []string
	for _, f := range files {
		ok, err := afero.Exists(o.fs, filepath.Join(dir, f))
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", f, err)
		}
		if !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required files: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (o *CheckOrchestrator) runTool(ctx context.Context, dir, command string, args []string) (string, error) {
	res, err := o.tools.Run(ctx, service.ToolInvocation{
		Name:    command,
		Args:    args,
		Dir:     dir,
		Timeout: service.DefaultToolTimeout,
	})
	return outputOf(res), err
}

func outputOf(res *service.ToolResult) string {
	if res == nil {
		return ""
	}
	return res.Output
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}

// ciKey turns a check name into a GITHUB_OUTPUT-safe key.
func ciKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
}
