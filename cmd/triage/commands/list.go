package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/tasks"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets",
	Long: `List unassigned and assigned tickets in dashboard order.

Examples:
  triage list
  triage list --sort priority --assigned-sort assignee
  triage list --unassigned --json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().String("sort", string(tasks.SortScore), "Unassigned order: score, priority, complexity")
	listCmd.Flags().String("assigned-sort", string(tasks.SortStatus), "Assigned order: status, priority, assignee")
	listCmd.Flags().Bool("unassigned", false, "Only list unassigned tickets")
	listCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	sortFlag, _ := cmd.Flags().GetString("sort")
	assignedFlag, _ := cmd.Flags().GetString("assigned-sort")
	onlyUnassigned, _ := cmd.Flags().GetBool("unassigned")
	jsonOutput, _ := cmd.Flags().GetBool("json")

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
	ts, roster, err := loadSources(cfg)
	if err != nil {
		return err
	}

	unassigned := tasks.SortUnassigned(tasks.Unassigned(ts), unassignedSort)
	var assigned []tasks.Task
	if !onlyUnassigned {
		assigned = tasks.SortAssigned(tasks.Assigned(ts), assignedSort, roster)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(append(unassigned, assigned...))
	}

	renderTaskList(w, "Unassigned", unassigned, roster)
	if !onlyUnassigned {
		fmt.Fprintln(w)
		renderTaskList(w, "In progress / done", assigned, roster)
	}
	return nil
}
