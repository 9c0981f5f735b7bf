package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/ui"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive triage dashboard",
	Long: `Open the three-column dashboard: unassigned tickets, tickets in
progress or done, and team workload.

Keys:
  a            run an AI pass over the unassigned tickets
  enter        accept the suggestion on the selected ticket
  s            cycle the sort order of the focused column
  tab          move between columns
  x            dismiss an error
  q            quit`,
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().String("sort", string(tasks.SortScore), "Unassigned column order: score, priority, complexity")
	boardCmd.Flags().String("assigned-sort", string(tasks.SortStatus), "Assigned column order: status, priority, assignee")
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	sortFlag, _ := cmd.Flags().GetString("sort")
	assignedFlag, _ := cmd.Flags().GetString("assigned-sort")
	unassignedSort, err := tasks.ParseSortKey(sortFlag, tasks.UnassignedSortKeys)
	if err != nil {
		return err
	}
	assignedSort, err := tasks.ParseSortKey(assignedFlag, tasks.AssignedSortKeys)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("board")

	ts, roster, err := loadSources(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The board still opens without a provider; passes then report the
	// missing configuration in the error banner.
	var runner ui.PassRunner
	sess, err := openSession(ctx, cfg, "board")
	if err != nil {
		log.Warnf("AI passes disabled: %v", err)
	} else {
		defer func() { _ = sess.Close() }()
		runner = sess.pass
	}

	model := ui.New(ts, roster, runner,
		ui.WithContext(ctx),
		ui.WithNoticeTimeout(cfg.NoticeTimeout()),
		ui.WithSort(unassignedSort, assignedSort),
	)
	final, err := model.Run()
	if err != nil {
		return err
	}

	if n := acceptedCount(ts, final); n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d ticket(s) accepted this session.\n", n)
	}
	return nil
}

// acceptedCount returns how many tickets gained an assignee between before
// and after.
func acceptedCount(before, after []tasks.Task) int {
	n := 0
	for _, t := range after {
		if t.AssignedTo == "" {
			continue
		}
		i := tasks.Find(before, t.ID)
		if i >= 0 && before[i].AssignedTo == "" {
			n++
		}
	}
	return n
}
