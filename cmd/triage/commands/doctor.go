package commands

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/db"
	"github.com/marcus/triage/internal/scheduler"
	"github.com/marcus/triage/internal/tasks"
)

type checkStatus string

const (
	statusOK   checkStatus = "OK"
	statusWarn checkStatus = "WARN"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	name   string
	status checkStatus
	detail string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check triage configuration and environment",
	Long: `Run diagnostics to detect configuration and environment issues.

Checks config, credentials, ticket sources, run history and scheduling.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig(cmd)
	if err != nil {
		printDoctorResults(out, []checkResult{{name: "config", status: statusFail, detail: err.Error()}})
		return fmt.Errorf("config load failed")
	}

	results := doctorChecks(cmd.Context(), cfg)
	printDoctorResults(out, results)
	for _, r := range results {
		if r.status == statusFail {
			return fmt.Errorf("doctor found problems")
		}
	}
	return nil
}

// doctorChecks runs every check against a loaded config.
func doctorChecks(ctx context.Context, cfg *config.Config) []checkResult {
	if ctx == nil {
		ctx = context.Background()
	}
	results := []checkResult{{name: "config", status: statusOK, detail: "loaded"}}
	add := func(name string, status checkStatus, detail string) {
		results = append(results, checkResult{name: name, status: status, detail: detail})
	}

	switch cfg.Gemini.Backend {
	case "cli":
		if path, err := exec.LookPath(cfg.Gemini.BinaryPath); err != nil {
			add("gemini cli", statusFail, fmt.Sprintf("%s not found in PATH", cfg.Gemini.BinaryPath))
		} else {
			add("gemini cli", statusOK, path)
		}
	default:
		if _, err := cfg.RequireAPIKey(); err != nil {
			add("api key", statusFail, err.Error())
		} else {
			add("api key", statusOK, "set")
		}
	}
	add("model", statusOK, fmt.Sprintf("%s (batch size %d)", cfg.Gemini.Model, cfg.EffectiveBatchSize()))

	ts, roster, err := loadSources(cfg)
	if err != nil {
		add("sources", statusFail, err.Error())
	} else {
		detail := fmt.Sprintf("%d tickets (%d unassigned), %d associates",
			len(ts), len(tasks.Unassigned(ts)), len(roster))
		if cfg.Sources.Tasks == "" || cfg.Sources.Associates == "" {
			add("sources", statusWarn, detail+", using seed data")
		} else {
			add("sources", statusOK, detail)
		}
	}

	if !cfg.History.Enabled {
		add("history", statusWarn, "disabled")
	} else if database, err := db.Open(cfg.ExpandedDBPath()); err != nil {
		add("history", statusFail, err.Error())
	} else {
		if s, err := database.RunStats(ctx); err != nil {
			add("history", statusFail, err.Error())
		} else {
			add("history", statusOK, fmt.Sprintf("%s (%d runs)", database.Path(), s.Total))
		}
		_ = database.Close()
	}

	sc := daemonSchedule(cfg)
	if sched, err := scheduler.NewFromConfig(&sc); err != nil {
		add("schedule", statusFail, err.Error())
	} else {
		add("schedule", statusOK, sched.Describe())
	}

	return results
}

func printDoctorResults(w io.Writer, results []checkResult) {
	fmt.Fprintln(w, "Triage doctor")
	fmt.Fprintln(w, "=============")
	for _, result := range results {
		fmt.Fprintf(w, "[%s] %-12s %s\n", result.status, result.name, result.detail)
	}
	fmt.Fprintln(w)
}
