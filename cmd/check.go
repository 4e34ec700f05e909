package cmd

import (
	"path/filepath"

	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/orchestrator"
	"github.com/spf13/cobra"
)

func NewCheckCmd(cfg *config.Config, orch *orchestrator.CheckOrchestrator) *cobra.Command {
	var ciOutput bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run every project check and report all failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := orch.Execute(cmd.Context(), checkConfig(cfg, ciOutput))
			return err
		},
	}
	cmd.Flags().BoolVar(&ciOutput, "ci-output", false, "Output in CI-friendly format")
	return cmd
}

func checkConfig(cfg *config.Config, ciOutput bool) orchestrator.CheckConfig {
	ccfg := orchestrator.CheckConfig{
		Dir:           filepath.Dir(cfg.Manifest),
		RequiredFiles: cfg.Check.RequiredFiles,
		FormatFlag:    cfg.Format.CheckFlag,
		CIOutput:      ciOutput,
	}
	if !cfg.Check.SkipLint && cfg.Lint.Command != "" {
		ccfg.Lint = &orchestrator.ToolCommand{Command: cfg.Lint.Command, Args: cfg.Lint.Args}
	}
	if !cfg.Check.SkipFormat && cfg.Format.Command != "" {
		ccfg.Format = &orchestrator.ToolCommand{Command: cfg.Format.Command, Args: cfg.Format.Args}
	}
	for _, c := range cfg.Check.Commands {
		ccfg.Commands = append(ccfg.Commands, orchestrator.NamedCommand{Name: c.Name, Run: c.Run})
	}
	return ccfg
}
