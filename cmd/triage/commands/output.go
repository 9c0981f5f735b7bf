package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/triage/internal/db"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/triage"
)

// cliStyles holds lipgloss styles for plain command output.
type cliStyles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Accent  lipgloss.Style
}

func newCLIStyles() cliStyles {
	return cliStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
	}
}

func (s cliStyles) band(b tasks.Band) lipgloss.Style {
	switch b {
	case tasks.BandHigh:
		return s.Error
	case tasks.BandMedium:
		return s.Warn
	default:
		return s.Success
	}
}

// asyncSpinner renders a braille spinner on the current line using \r.
type asyncSpinner struct {
	mu      sync.Mutex
	out     io.Writer
	label   string
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func newAsyncSpinner(out io.Writer) *asyncSpinner {
	return &asyncSpinner{out: out}
}

func (s *asyncSpinner) start(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.label = label
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run()
}

func (s *asyncSpinner) setLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}

func (s *asyncSpinner) run() {
	defer close(s.doneCh)
	idx := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			s.mu.Lock()
			clearLen := len(s.label) + 4
			s.mu.Unlock()
			fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", clearLen))
			return
		case <-ticker.C:
			s.mu.Lock()
			label := s.label
			s.mu.Unlock()
			frame := spinnerFrames[idx%len(spinnerFrames)]
			fmt.Fprintf(s.out, "\r  %s %s", frame, label)
			idx++
		}
	}
}

func (s *asyncSpinner) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	close(s.stopCh)
	<-s.doneCh
}

// renderPassResult prints the suggestions of a pass, highest score first.
func renderPassResult(w io.Writer, res *triage.PassResult, roster []tasks.Associate) {
	st := newCLIStyles()
	fmt.Fprintln(w, st.Title.Render("Triage pass"))
	fmt.Fprintf(w, "  %s %s\n", st.Label.Render("Run:"), st.Value.Render(res.ID))
	fmt.Fprintf(w, "  %s %d tickets in %d batches, %s\n",
		st.Label.Render("Analyzed:"), res.Analyzed, res.Batches, formatDuration(res.Duration))
	fmt.Fprintln(w)

	suggested := tasks.SortUnassigned(tasks.Unassigned(res.Tasks), tasks.SortScore)
	if len(suggested) == 0 {
		fmt.Fprintln(w, st.Muted.Render("  No unassigned tickets."))
		return
	}
	for _, t := range suggested {
		if !t.HasSuggestion() {
			fmt.Fprintf(w, "  %s  %-12s %s\n", st.Muted.Render("  -"), t.ID, st.Muted.Render("no suggestion"))
			continue
		}
		score := st.band(tasks.ScoreBand(t.Score())).Render(fmt.Sprintf("%3.0f", t.Score()))
		fmt.Fprintf(w, "  %s  %-12s %s %s\n", score, t.ID,
			st.Accent.Render("->"), tasks.AssociateName(roster, t.SuggestedTo))
		if t.AIReasoning != "" {
			fmt.Fprintf(w, "       %s\n", st.Muted.Render(t.AIReasoning))
		}
	}
}

// renderTaskList prints one dashboard column as plain text.
func renderTaskList(w io.Writer, title string, ts []tasks.Task, roster []tasks.Associate) {
	st := newCLIStyles()
	fmt.Fprintf(w, "%s %s\n", st.Title.Render(title), st.Muted.Render(fmt.Sprintf("(%d)", len(ts))))
	if len(ts) == 0 {
		fmt.Fprintln(w, st.Muted.Render("  none"))
		return
	}
	for _, t := range ts {
		line := fmt.Sprintf("  %-12s %-8s %-12s %s", t.ID, t.Priority, t.Status, t.Title)
		switch {
		case t.AssignedTo != "":
			line += st.Muted.Render("  @" + tasks.AssociateName(roster, t.AssignedTo))
		case t.HasSuggestion():
			line += st.Accent.Render(fmt.Sprintf("  [%.0f -> %s]", t.Score(), tasks.AssociateName(roster, t.SuggestedTo)))
		}
		fmt.Fprintln(w, line)
	}
}

// renderWorkloads prints per-associate in-progress counts.
func renderWorkloads(w io.Writer, loads []tasks.AssociateLoad) {
	st := newCLIStyles()
	fmt.Fprintln(w, st.Title.Render("Team workload"))
	if len(loads) == 0 {
		fmt.Fprintln(w, st.Muted.Render("  No associates."))
		return
	}
	for _, l := range loads {
		total := st.band(tasks.WorkloadBand(l.Workload.Total)).Render(fmt.Sprintf("%2d", l.Workload.Total))
		fmt.Fprintf(w, "  %-20s %s  %s\n", l.Name, total, st.Muted.Render(fmt.Sprintf(
			"Jira:%d INC:%d TASK:%d PRB:%d",
			l.Workload.Jira, l.Workload.Incident, l.Workload.ServiceTask, l.Workload.Problem)))
	}
}

// renderStats prints run history aggregates and the most recent runs.
func renderStats(w io.Writer, s *db.Stats, runs []triage.RunRecord) {
	st := newCLIStyles()
	fmt.Fprintln(w, st.Title.Render("Triage history"))
	if s.Total == 0 {
		fmt.Fprintln(w, st.Muted.Render("  No runs recorded yet."))
		return
	}
	fmt.Fprintf(w, "  %s %d (%d ok, %d failed, %.0f%% success)\n",
		st.Label.Render("Runs:"), s.Total, s.Succeeded, s.Failed, s.SuccessRate*100)
	fmt.Fprintf(w, "  %s %s\n", st.Label.Render("Avg duration:"), formatDuration(s.AvgDuration))
	fmt.Fprintf(w, "  %s %d\n", st.Label.Render("Suggestions:"), s.TotalRecommendations)
	fmt.Fprintf(w, "  %s %s\n", st.Label.Render("Last run:"), s.LastRun.Local().Format("2006-01-02 15:04"))

	if len(runs) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, r := range runs {
		status := st.Success.Render("ok  ")
		if r.Status != triage.StatusSuccess {
			status = st.Error.Render("fail")
		}
		line := fmt.Sprintf("  %s %s  %-8s %3d tickets %2d batches %3d suggestions %8s",
			r.StartedAt.Local().Format("01-02 15:04"), status, r.TriggeredBy,
			r.TaskCount, r.BatchCount, r.RecommendationCount, formatDuration(r.Duration))
		fmt.Fprintln(w, line)
		if r.Error != "" {
			fmt.Fprintf(w, "      %s\n", st.Muted.Render(r.Error))
		}
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
