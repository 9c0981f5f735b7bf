package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/scheduler"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/triage"
)

const (
	pidFileName = "triage.pid"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage background daemon",
	Long:  `Start, stop, or check status of the triage background daemon.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start background daemon",
	Long: `Start the triage daemon as a background process.

The daemon reloads the ticket and roster exports and runs an AI pass on
the configured schedule (cron or interval), respecting the optional time
window. Every pass is written to run history; see "triage stats".`,
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop background daemon",
	Long:  `Stop the running triage daemon by sending SIGTERM.`,
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status",
	Long:  `Check if the triage daemon is running and show its schedule.`,
	RunE:  runDaemonStatus,
}

var daemonForegroundFlag bool

func init() {
	daemonStartCmd.Flags().BoolVarP(&daemonForegroundFlag, "foreground", "f", false, "Run in foreground (don't daemonize)")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

// pidFilePath returns the path to the PID file.
func pidFilePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "triage", pidFileName)
}

// writePidFile writes the current process PID to the PID file.
func writePidFile() error {
	if err := os.MkdirAll(filepath.Dir(pidFilePath()), 0755); err != nil {
		return fmt.Errorf("creating pid dir: %w", err)
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

// readPidFile reads the PID from the PID file.
func readPidFile() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePidFile() error {
	return os.Remove(pidFilePath())
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 checks liveness.
	return process.Signal(syscall.Signal(0)) == nil
}

func isDaemonRunning() (bool, int) {
	pid, err := readPidFile()
	if err != nil {
		return false, 0
	}
	return isProcessRunning(pid), pid
}

// daemonSchedule returns the schedule the daemon runs on, falling back to
// config.DefaultSchedule when neither cron nor interval is set.
func daemonSchedule(cfg *config.Config) config.ScheduleConfig {
	sc := cfg.Schedule
	if sc.Cron == "" && sc.Interval == "" {
		sc.Cron = config.DefaultSchedule
	}
	return sc
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	if running, pid := isDaemonRunning(); running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	if daemonForegroundFlag {
		return runDaemonLoop(cfg)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable: %w", err)
	}

	childArgs := []string{"daemon", "start", "--foreground"}
	for _, name := range []string{"tasks", "associates"} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			childArgs = append(childArgs, "--"+name, v)
		}
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		childArgs = append(childArgs, "--verbose")
	}

	child := exec.Command(executable, childArgs...)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil
	// Detach from parent process group
	child.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "daemon started (pid %d)\n", child.Process.Pid)
	return nil
}

func runDaemonLoop(cfg *config.Config) error {
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("daemon")

	if err := writePidFile(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _ = removePidFile() }()

	log.Info("daemon starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	sess, err := openSession(ctx, cfg, "daemon")
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	sc := daemonSchedule(cfg)
	sched, err := scheduler.NewFromConfig(&sc)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.AddJob(func(jobCtx context.Context) error {
		return runScheduledPass(jobCtx, cfg, sess.pass, log)
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	log.InfoCtx("daemon running", map[string]any{
		"schedule": sched.Describe(),
		"next_run": sched.NextRun().Format(time.RFC3339),
	})

	<-ctx.Done()

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		log.Errorf("stopping scheduler: %v", err)
	}

	log.Info("daemon stopped")
	return nil
}

// runScheduledPass reloads the exports and scores the unassigned tickets.
func runScheduledPass(ctx context.Context, cfg *config.Config, pass *triage.Pass, log *logging.Logger) error {
	ts, roster, err := loadSources(cfg)
	if err != nil {
		return err
	}

	res, err := pass.Run(ctx, ts, roster)
	if errors.Is(err, triage.ErrNothingToDo) {
		log.Info("no unassigned tickets, skipping pass")
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduled pass: %w", err)
	}

	top := tasks.SortUnassigned(tasks.Unassigned(res.Tasks), tasks.SortScore)
	fields := map[string]any{
		"run_id":          res.ID,
		"analyzed":        res.Analyzed,
		"batches":         res.Batches,
		"recommendations": len(res.Recommendations),
		"duration":        res.Duration.String(),
	}
	if len(top) > 0 && top[0].HasSuggestion() {
		fields["top_task"] = top[0].ID
		fields["top_score"] = top[0].Score()
		fields["top_assignee"] = tasks.AssociateName(roster, top[0].SuggestedTo)
	}
	log.InfoCtx("scheduled pass complete", fields)
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	running, pid := isDaemonRunning()
	if !running {
		if _, err := readPidFile(); err == nil {
			_ = removePidFile()
			fmt.Fprintln(out, "daemon not running (stale pid file removed)")
			return nil
		}
		fmt.Fprintln(out, "daemon not running")
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM: %w", err)
	}

	fmt.Fprintf(out, "stopping daemon (pid %d)...\n", pid)

	timeout := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-timeout:
			fmt.Fprintln(out, "daemon did not stop, sending SIGKILL")
			_ = process.Signal(syscall.SIGKILL)
			_ = removePidFile()
			return nil
		case <-tick.C:
			if !isProcessRunning(pid) {
				fmt.Fprintln(out, "daemon stopped")
				_ = removePidFile()
				return nil
			}
		}
	}
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	running, pid := isDaemonRunning()
	if !running {
		fmt.Fprintln(out, "Status: not running")
		return nil
	}

	fmt.Fprintln(out, "Status: running")
	fmt.Fprintf(out, "PID: %d\n", pid)

	if cfg, err := loadConfig(cmd); err == nil {
		sc := daemonSchedule(cfg)
		if sched, err := scheduler.NewFromConfig(&sc); err == nil {
			fmt.Fprintf(out, "Schedule: %s\n", sched.Describe())
		}
	}
	fmt.Fprintf(out, "PID file: %s\n", pidFilePath())
	return nil
}
