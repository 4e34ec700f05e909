package cmd

import (
	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/orchestrator"
	"github.com/spf13/cobra"
)

// NewHooksCmd creates the hooks command group
func NewHooksCmd(cfg *config.Config, orch *orchestrator.GitSetupOrchestrator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage the git hooks configured under hooks",
	}
	var force bool
	install := &cobra.Command{
		Use:   "install",
		Short: "Write the configured hook scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return orch.InstallHooks(cmd.Context(), cfg.Hooks, force)
		},
	}
	install.Flags().BoolVar(&force, "force", false, "Replace hooks not managed by nodekit")
	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the hook scripts written by nodekit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return orch.UninstallHooks(cmd.Context())
		},
	}
	cmd.AddCommand(install, uninstall)
	return cmd
}

func NewGitConfigCmd(cfg *config.Config, orch *orchestrator.GitSetupOrchestrator) *cobra.Command {
	return &cobra.Command{
		Use:   "git-config",
		Short: "Apply git.config entries to the repository config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return orch.ApplyGitConfig(cmd.Context(), cfg.Git.Config)
		},
	}
}
