package cmd

import (
	"fmt"
	"strings"

	"github.com/compozy/nodekit/pkg/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nodekit",
	Short: "One CLI for the maintenance tasks of a JavaScript project",
	Long: `nodekit wraps the package manager, linter, formatter and git behind one
command surface: install, version, publish, lint, format, check and hooks.`,
	Version:       version.Summary(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("Version:\t%s\nCommit:\t%s\nBuilt:\t%s\n",
		safeValue(version.Version, "dev"),
		safeValue(version.CommitHash, "unknown"),
		safeValue(version.BuildDate, "unknown"),
	))
}

func Execute() error {
	return rootCmd.Execute()
}

func safeValue(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
