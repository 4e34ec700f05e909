package cmd

import (
	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/orchestrator"
	"github.com/spf13/cobra"
)

func NewInstallCmd(cfg *config.Config, orch *orchestrator.InstallOrchestrator) *cobra.Command {
	var frozen bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install dependencies with the project's package manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := orch.Execute(cmd.Context(), orchestrator.InstallConfig{
				ManifestPath:   cfg.Manifest,
				PackageManager: cfg.Install.PackageManager,
				Frozen:         frozen || cfg.Install.FrozenLockfile,
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&frozen, "frozen", false, "Fail instead of updating the lockfile")
	return cmd
}
