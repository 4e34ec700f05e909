package cmd

import (
	"fmt"

	"github.com/compozy/nodekit/internal/config"
	"github.com/compozy/nodekit/internal/domain"
	"github.com/compozy/nodekit/internal/orchestrator"
	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version command
func NewVersionCmd(cfg *config.Config, orch *orchestrator.VersionOrchestrator) *cobra.Command {
	var (
		req            domain.VersionBumpRequest
		noGit          bool
		push           bool
		githubRelease  bool
		dryRun         bool
		ciOutput       bool
		enableRollback bool
	)
	cmd := &cobra.Command{
		Use:   "version [explicit-version]",
		Short: "Bump the package version",
		Long: `Resolve the next version, write it to the manifest and record it in git.

Without flags a stable version gets a patch bump and a prerelease continues
its channel. --prerelease on a stable version starts a prepatch on the channel
named by --preid (or version.prerelease_id, or "edge").

With rollback support enabled (--enable-rollback), completed steps are undone
when a later step fails and the session can be rolled back afterwards with
"nodekit rollback".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.ExplicitVersion = args[0]
			}
			vcfg := orchestrator.VersionConfig{
				Request:        req,
				Defaults:       cfg.VersionDefaults(),
				ManifestPath:   cfg.Manifest,
				CommitMessage:  cfg.Version.CommitMessage,
				GitCommit:      cfg.Version.GitCommit && !noGit,
				GitTag:         cfg.Version.GitTag && !noGit,
				Push:           (cfg.Version.GitPush || push) && !noGit,
				GithubRelease:  (cfg.Version.GithubRelease || githubRelease) && !noGit,
				DryRun:         dryRun,
				CIOutput:       ciOutput,
				EnableRollback: cfg.Version.EnableRollback || enableRollback,
			}
			if vcfg.GithubRelease && !vcfg.DryRun {
				if err := cfg.ValidateForGitHubOperations(); err != nil {
					return fmt.Errorf("--github-release: %w", err)
				}
			}
			_, err := orch.Execute(cmd.Context(), vcfg)
			return err
		},
	}

	cmd.Flags().BoolVar(&req.BumpMajor, "major", false, "Bump the major version")
	cmd.Flags().BoolVar(&req.BumpMinor, "minor", false, "Bump the minor version")
	cmd.Flags().BoolVar(&req.BumpPatch, "patch", false, "Bump the patch version (default; a prerelease keeps its channel and bumps its counter)")
	cmd.Flags().BoolVar(&req.Prerelease, "prerelease", false, "Produce a prerelease version")
	cmd.Flags().StringVar(&req.PrereleaseID, "preid", "", "Prerelease channel, e.g. beta or rc")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "Only update the manifest")
	cmd.Flags().BoolVar(&push, "push", false, "Push the branch and tag to origin")
	cmd.Flags().BoolVar(&githubRelease, "github-release", false, "Create a GitHub release for the tag")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the resolved version without changing anything")
	cmd.Flags().BoolVar(&ciOutput, "ci-output", false, "Output in CI-friendly format")
	cmd.Flags().BoolVar(&enableRollback, "enable-rollback", false, "Enable automatic rollback on failure")
	return cmd
}

// NewRollbackCmd creates the rollback command
func NewRollbackCmd(orch *orchestrator.VersionOrchestrator) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back a failed version session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return orch.Rollback(cmd.Context(), sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session ID to rollback (uses latest if not specified)")
	return cmd
}
