// Package commands implements the triage CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "AI-assisted triage for Jira and ServiceNow tickets",
	Long: `Triage loads unassigned Jira and ServiceNow tickets, asks Gemini to
score them and suggest an assignee based on skills and current workload,
and lets a team lead review and accept the suggestions.

Run "triage board" for the interactive dashboard, or "triage analyze" for
a one-shot pass printed to stdout.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		noColor, _ := cmd.Flags().GetBool("no-color")
		applyColorProfile(noColor)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("tasks", "", "Ticket export (YAML, JSON or TOML); defaults to seed data")
	rootCmd.PersistentFlags().String("associates", "", "Roster export (YAML, JSON or TOML); defaults to seed data")
}
