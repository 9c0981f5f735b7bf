package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/tasks"
)

var workloadCmd = &cobra.Command{
	Use:   "workload",
	Short: "Show in-progress tickets per associate",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ts, roster, err := loadSources(cfg)
		if err != nil {
			return err
		}

		loads := tasks.ComputeWorkloads(ts, roster)
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(loads)
		}
		renderWorkloads(cmd.OutOrStdout(), loads)
		return nil
	},
}

func init() {
	workloadCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(workloadCmd)
}
