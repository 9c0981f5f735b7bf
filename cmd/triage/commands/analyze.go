package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/triage"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one AI pass and print the suggestions",
	Long: `Run a single triage pass over the unassigned tickets and print the
suggested assignee, priority score and reasoning for each, highest score
first. Nothing is accepted; use "triage board" to review and accept.

Examples:
  triage analyze
  triage analyze --batch-size 5
  triage analyze --tasks ./export.yaml --json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "Output as JSON")
	analyzeCmd.Flags().Int("batch-size", 0, "Tickets per request (overrides gemini.batch_size)")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeOutput is the JSON shape printed by analyze --json.
type analyzeOutput struct {
	ID              string                 `json:"id"`
	Analyzed        int                    `json:"analyzed"`
	Batches         int                    `json:"batches"`
	DurationMS      int64                  `json:"durationMs"`
	Recommendations []tasks.Recommendation `json:"recommendations"`
	Workloads       []tasks.AssociateLoad  `json:"workloads"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if batchSize > 0 {
		cfg.Gemini.BatchSize = batchSize
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("analyze")

	ts, roster, err := loadSources(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	sess, err := openSession(ctx, cfg, "analyze")
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	var spin *asyncSpinner
	if !jsonOutput && isInteractive() {
		spin = newAsyncSpinner(os.Stdout)
		spin.start(fmt.Sprintf("Analyzing %d unassigned tickets...", len(tasks.Unassigned(ts))))
	}
	res, err := sess.pass.Run(ctx, ts, roster)
	if spin != nil {
		spin.stop()
	}
	if errors.Is(err, triage.ErrNothingToDo) {
		fmt.Fprintln(cmd.OutOrStdout(), "No unassigned tasks to process.")
		return nil
	}
	if err != nil {
		log.Errorf("pass failed: %v", err)
		return err
	}
	log.InfoCtx("pass complete", map[string]any{
		"run_id":          res.ID,
		"analyzed":        res.Analyzed,
		"recommendations": len(res.Recommendations),
	})

	if jsonOutput {
		return writeAnalyzeJSON(cmd.OutOrStdout(), res, roster)
	}
	renderPassResult(cmd.OutOrStdout(), res, roster)
	return nil
}

func writeAnalyzeJSON(w io.Writer, res *triage.PassResult, roster []tasks.Associate) error {
	out := analyzeOutput{
		ID:              res.ID,
		Analyzed:        res.Analyzed,
		Batches:         res.Batches,
		DurationMS:      res.Duration.Milliseconds(),
		Recommendations: res.Recommendations,
		Workloads:       tasks.ComputeWorkloads(res.Tasks, roster),
	}
	if out.Recommendations == nil {
		out.Recommendations = []tasks.Recommendation{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
