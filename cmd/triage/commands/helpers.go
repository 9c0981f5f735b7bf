package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/db"
	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/providers"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/tracker"
	"github.com/marcus/triage/internal/triage"
)

// isInteractive reports whether stdout is a terminal. Override in tests.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// newProvider builds the scoring provider. Override in tests.
var newProvider = providers.New

func applyColorProfile(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isInteractive() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// loadConfig loads configuration and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd, cfg)
	return cfg, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	if path, _ := cmd.Flags().GetString("tasks"); path != "" {
		cfg.Sources.Tasks = path
	}
	if path, _ := cmd.Flags().GetString("associates"); path != "" {
		cfg.Sources.Associates = path
	}
}

func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Path:   cfg.ExpandedLogPath(),
		Format: cfg.Logging.Format,
	})
}

// loadSources reads tickets and roster, falling back to seed data.
func loadSources(cfg *config.Config) ([]tasks.Task, []tasks.Associate, error) {
	ts, roster, err := tracker.Load(cfg.Sources.Tasks, cfg.Sources.Associates)
	if err != nil {
		return nil, nil, fmt.Errorf("loading sources: %w", err)
	}
	return ts, roster, nil
}

// session bundles what a command needs to run passes.
type session struct {
	cfg      *config.Config
	pass     *triage.Pass
	database *db.DB
}

// Close releases the history database, if open.
func (s *session) Close() error {
	if s.database == nil {
		return nil
	}
	return s.database.Close()
}

// openSession wires provider, orchestrator and run history for one command.
// trigger labels the runs it records.
func openSession(ctx context.Context, cfg *config.Config, trigger string) (*session, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}

	log := logging.Component("pass")
	orch := triage.New(
		triage.WithProvider(provider),
		triage.WithConfig(triage.Config{
			BatchSize:      cfg.EffectiveBatchSize(),
			Timeout:        cfg.PassTimeout(),
			MaxConcurrency: cfg.Gemini.MaxConcurrency,
		}),
		triage.WithEventHandler(func(e triage.Event) {
			log.DebugCtx(e.Type.String(), map[string]any{
				"batch":    e.Batch,
				"batches":  e.Batches,
				"tasks":    e.Tasks,
				"results":  e.Results,
				"duration": e.Duration.String(),
				"error":    e.Error,
			})
		}),
	)

	s := &session{cfg: cfg}
	opts := []triage.PassOption{triage.WithTrigger(trigger)}
	if cfg.History.Enabled {
		database, err := db.Open(cfg.ExpandedDBPath())
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		s.database = database
		opts = append(opts, triage.WithRecorder(database))
	}
	s.pass = triage.NewPass(orch, opts...)
	return s, nil
}
