package cmd

import (
	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/orchestrator"
	"github.com/spf13/cobra"
)

func NewPublishCmd(cfg *config.Config, orch *orchestrator.PublishOrchestrator) *cobra.Command {
	var (
		tag      string
		stable   bool
		latest   bool
		dryRun   bool
		access   string
		ciOutput bool
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the package to the registry",
		Long: `Publish the package under a dist-tag derived from its version, then point
the default tag (publish.default_tag, "edge") at the same version.

A prerelease such as 1.2.0-beta.3 is published under "beta"; a stable version
under publish.stable_tag ("latest"). --tag overrides both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if access == "" {
				access = cfg.Publish.Access
			}
			_, err := orch.Execute(cmd.Context(), orchestrator.PublishConfig{
				ManifestPath:   cfg.Manifest,
				PackageManager: cfg.Install.PackageManager,
				ExplicitTag:    tag,
				Stable:         stable,
				Latest:         latest,
				DefaultTag:     cfg.Publish.DefaultTag,
				StableTag:      cfg.Publish.StableTag,
				Access:         access,
				Registry:       cfg.Publish.Registry,
				DryRun:         dryRun,
				CIOutput:       ciOutput,
			})
			return err
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Publish under this dist-tag")
	cmd.Flags().BoolVar(&stable, "stable", false, "Publish under the stable tag")
	cmd.Flags().BoolVar(&latest, "latest", false, "Alias of --stable")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Pass --dry-run to the package manager")
	cmd.Flags().StringVar(&access, "access", "", "Package access: public or restricted")
	cmd.Flags().BoolVar(&ciOutput, "ci-output", false, "Output in CI-friendly format")
	return cmd
}
