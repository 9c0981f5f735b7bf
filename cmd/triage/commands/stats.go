package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/db"
	"github.com/marcus/triage/internal/triage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show triage run history",
	Long: `Display aggregate statistics and recent runs from the history
database. Use --json for machine-readable output.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "Output as JSON")
	statsCmd.Flags().IntP("limit", "n", 10, "Number of recent runs to show")
	rootCmd.AddCommand(statsCmd)
}

type statsOutput struct {
	Total                int                `json:"total"`
	Succeeded            int                `json:"succeeded"`
	Failed               int                `json:"failed"`
	SuccessRate          float64            `json:"successRate"`
	AvgDurationMS        int64              `json:"avgDurationMs"`
	TotalRecommendations int                `json:"totalRecommendations"`
	Runs                 []triage.RunRecord `json:"runs"`
}

func runStats(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("run history is disabled (history.enabled: false)")
	}

	database, err := db.Open(cfg.ExpandedDBPath())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = database.Close() }()

	ctx := context.Background()
	s, err := database.RunStats(ctx)
	if err != nil {
		return fmt.Errorf("computing stats: %w", err)
	}
	runs, err := database.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("loading runs: %w", err)
	}

	if jsonOutput {
		out := statsOutput{
			Total:                s.Total,
			Succeeded:            s.Succeeded,
			Failed:               s.Failed,
			SuccessRate:          s.SuccessRate,
			AvgDurationMS:        s.AvgDuration.Milliseconds(),
			TotalRecommendations: s.TotalRecommendations,
			Runs:                 runs,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	renderStats(cmd.OutOrStdout(), &s, runs)
	return nil
}
