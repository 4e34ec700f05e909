package cmd

import (
	"path/filepath"

	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/orchestrator"
	"github.com/spf13/cobra"
)

func NewLintCmd(cfg *config.Config, orch *orchestrator.LintOrchestrator) *cobra.Command {
	var (
		fix    bool
		staged bool
	)
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run the configured linter",
		Long: `Run the configured linter over the project, or with --staged run the
lint_staged commands on the staged files they match and stage the results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if staged {
				return orch.RunStaged(cmd.Context(), orchestrator.LintStagedConfig{Rules: cfg.LintStaged})
			}
			run := orchestrator.ToolRunConfig{
				Label: "lint",
				Dir:   filepath.Dir(cfg.Manifest),
				Tool:  orchestrator.ToolCommand{Command: cfg.Lint.Command, Args: cfg.Lint.Args},
			}
			if fix {
				run.Flag = cfg.Lint.FixFlag
			}
			return orch.Run(cmd.Context(), run)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Apply automatic fixes")
	cmd.Flags().BoolVar(&staged, "staged", false, "Run lint_staged commands on staged files")
	return cmd
}

func NewFormatCmd(cfg *config.Config, orch *orchestrator.LintOrchestrator) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Run the configured formatter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flag := cfg.Format.WriteFlag
			if check {
				flag = cfg.Format.CheckFlag
			}
			return orch.Run(cmd.Context(), orchestrator.ToolRunConfig{
				Label: "format",
				Dir:   filepath.Dir(cfg.Manifest),
				Tool:  orchestrator.ToolCommand{Command: cfg.Format.Command, Args: cfg.Format.Args},
				Flag:  flag,
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Report unformatted files without writing")
	return cmd
}
