// Package ui provides the interactive triage board.
// Uses Bubbletea for the three-panel layout: unassigned tickets, tickets in
// progress or done, and team workload.
package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/triage"
)

// Panel represents which panel is currently focused.
type Panel int

const (
	PanelUnassigned Panel = iota
	PanelAssigned
	PanelWorkload
	panelCount
)

func (p Panel) String() string {
	switch p {
	case PanelUnassigned:
		return "Unassigned"
	case PanelAssigned:
		return "In Progress / Done"
	case PanelWorkload:
		return "Team Workload"
	default:
		return "?"
	}
}

// Notices shown by the board.
const (
	noticeNothingToDo = "No unassigned tasks to process."
	noticeBusy        = "An AI pass is already running."
	defaultNotice     = 3 * time.Second
)

// PassRunner runs one triage pass. *triage.Pass satisfies it.
type PassRunner interface {
	Run(ctx context.Context, ts []tasks.Task, roster []tasks.Associate) (*triage.PassResult, error)
}

// passDoneMsg carries the outcome of a pass back into Update.
type passDoneMsg struct {
	result *triage.PassResult
	err    error
}

// noticeExpiredMsg clears the notice it was scheduled for.
type noticeExpiredMsg struct {
	id int
}

// Model holds the TUI state.
type Model struct {
	// Display state
	width       int
	height      int
	activePanel Panel
	quitting    bool
	cursor      [panelCount]int

	// Data
	tasks          []tasks.Task
	roster         []tasks.Associate
	unassignedSort tasks.SortKey
	assignedSort   tasks.SortKey

	// Pass state
	runner    PassRunner
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	spinner   spinner.Model
	lastPass  *triage.PassResult
	lastError error

	// Transient notice
	notice        string
	noticeID      int
	noticeTimeout time.Duration

	styles *Styles
}

// Option configures the board.
type Option func(*Model)

// WithNoticeTimeout sets how long transient notices stay on screen.
func WithNoticeTimeout(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.noticeTimeout = d
		}
	}
}

// WithContext sets the parent context for passes started from the board.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		m.ctx = ctx
	}
}

// WithSort sets the initial sort keys of the two ticket panels.
func WithSort(unassigned, assigned tasks.SortKey) Option {
	return func(m *Model) {
		if unassigned != "" {
			m.unassignedSort = unassigned
		}
		if assigned != "" {
			m.assignedSort = assigned
		}
	}
}

// New creates a board over ts. runner may be nil, in which case AI passes
// report an error.
func New(ts []tasks.Task, roster []tasks.Associate, runner PassRunner, opts ...Option) *Model {
	styles := newStyles()
	m := &Model{
		width:          120,
		height:         32,
		activePanel:    PanelUnassigned,
		tasks:          tasks.Clone(ts),
		roster:         roster,
		unassignedSort: tasks.SortScore,
		assignedSort:   tasks.SortStatus,
		runner:         runner,
		ctx:            context.Background(),
		noticeTimeout:  defaultNotice,
		spinner:        spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.StatusRunning)),
		styles:         styles,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Tasks returns the current collection.
func (m Model) Tasks() []tasks.Task {
	return tasks.Clone(m.tasks)
}

// Running reports whether a pass is in flight.
func (m Model) Running() bool {
	return m.running
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case passDoneMsg:
		return m.handlePassDone(msg)

	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Any action other than dismiss clears a persisted error.
	if key != "x" && key != "q" && key != "ctrl+c" {
		m.lastError = nil
	}

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case "x", "esc":
		m.lastError = nil
		m.notice = ""
		return m, nil

	case "a":
		return m.startPass()

	case "enter":
		return m.acceptSelected()

	case "s":
		m = m.cycleSort()
		return m, nil

	case "tab", "right", "l":
		m.activePanel = (m.activePanel + 1) % panelCount
		return m, nil

	case "shift+tab", "left", "h":
		m.activePanel = (m.activePanel + panelCount - 1) % panelCount
		return m, nil

	case "up", "k":
		if m.cursor[m.activePanel] > 0 {
			m.cursor[m.activePanel]--
		}
		return m, nil

	case "down", "j":
		if m.cursor[m.activePanel] < m.panelLen(m.activePanel)-1 {
			m.cursor[m.activePanel]++
		}
		return m, nil

	case "home", "g":
		m.cursor[m.activePanel] = 0
		return m, nil

	case "end", "G":
		if n := m.panelLen(m.activePanel); n > 0 {
			m.cursor[m.activePanel] = n - 1
		}
		return m, nil
	}

	return m, nil
}

// startPass launches a pass in a command. The unassigned sort is forced to
// score so new suggestions surface at the top.
func (m Model) startPass() (tea.Model, tea.Cmd) {
	if m.running {
		return m.setNotice(noticeBusy)
	}
	if len(tasks.Unassigned(m.tasks)) == 0 {
		return m.setNotice(noticeNothingToDo)
	}
	if m.runner == nil {
		m.lastError = errors.New("no AI provider configured")
		return m, nil
	}

	m.running = true
	m.notice = ""
	m.unassignedSort = tasks.SortScore
	m.cursor[PanelUnassigned] = 0
	m.tasks = tasks.ResetSuggestions(m.tasks)

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	return m, tea.Batch(m.spinner.Tick, runPass(ctx, cancel, m.runner, tasks.Clone(m.tasks), m.roster))
}

func runPass(ctx context.Context, cancel context.CancelFunc, runner PassRunner, ts []tasks.Task, roster []tasks.Associate) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		res, err := runner.Run(ctx, ts, roster)
		return passDoneMsg{result: res, err: err}
	}
}

func (m Model) handlePassDone(msg passDoneMsg) (tea.Model, tea.Cmd) {
	m.running = false
	m.cancel = nil

	if msg.err != nil {
		if errors.Is(msg.err, triage.ErrNothingToDo) {
			return m.setNotice(noticeNothingToDo)
		}
		m.lastError = msg.err
		return m, nil
	}

	m.tasks = msg.result.Tasks
	m.lastPass = msg.result
	m.clampCursors()
	return m, nil
}

// acceptSelected accepts the suggestion on the highlighted unassigned ticket.
func (m Model) acceptSelected() (tea.Model, tea.Cmd) {
	if m.activePanel != PanelUnassigned {
		return m, nil
	}
	if m.running {
		return m.setNotice(noticeBusy)
	}

	view := m.unassignedView()
	if len(view) == 0 {
		return m, nil
	}
	selected := view[min(m.cursor[PanelUnassigned], len(view)-1)]
	if !selected.HasSuggestion() {
		return m.setNotice(fmt.Sprintf("%s has no suggestion yet. Press a to run the AI pass.", selected.ID))
	}

	updated, err := tasks.AcceptSuggestion(m.tasks, selected.ID)
	if err != nil {
		m.lastError = err
		return m, nil
	}
	m.tasks = updated
	m.clampCursors()
	return m, nil
}

func (m Model) cycleSort() Model {
	switch m.activePanel {
	case PanelUnassigned:
		m.unassignedSort = tasks.NextSortKey(m.unassignedSort, tasks.UnassignedSortKeys)
	case PanelAssigned:
		m.assignedSort = tasks.NextSortKey(m.assignedSort, tasks.AssignedSortKeys)
	}
	m.cursor[m.activePanel] = 0
	return m
}

func (m Model) setNotice(text string) (tea.Model, tea.Cmd) {
	m.noticeID++
	m.notice = text
	id := m.noticeID
	return m, tea.Tick(m.noticeTimeout, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m *Model) clampCursors() {
	for p := Panel(0); p < panelCount; p++ {
		n := m.panelLen(p)
		if m.cursor[p] >= n {
			m.cursor[p] = max(n-1, 0)
		}
	}
}

func (m Model) panelLen(p Panel) int {
	switch p {
	case PanelUnassigned:
		return len(tasks.Unassigned(m.tasks))
	case PanelAssigned:
		return len(tasks.Assigned(m.tasks))
	case PanelWorkload:
		return len(m.roster)
	}
	return 0
}

func (m Model) unassignedView() []tasks.Task {
	return tasks.SortUnassigned(tasks.Unassigned(m.tasks), m.unassignedSort)
}

func (m Model) assignedView() []tasks.Task {
	return tasks.SortAssigned(tasks.Assigned(m.tasks), m.assignedSort, m.roster)
}

func (m Model) workloadView() []tasks.AssociateLoad {
	loads := tasks.ComputeWorkloads(m.tasks, m.roster)
	slices.SortStableFunc(loads, func(a, b tasks.AssociateLoad) int {
		return strings.Compare(a.Associate.Name, b.Associate.Name)
	})
	return loads
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := m.renderHeader()
	banner := m.renderBanner()
	helpBar := m.renderHelpBar()

	used := lipgloss.Height(header) + lipgloss.Height(helpBar)
	if banner != "" {
		used += lipgloss.Height(banner)
	}
	panelHeight := max(m.height-used-2, 6)

	colWidth := m.width / 3
	widths := [panelCount]int{colWidth, colWidth, m.width - 2*colWidth}

	panels := make([]string, 0, panelCount)
	for p := Panel(0); p < panelCount; p++ {
		inner := widths[p] - 2
		var content string
		switch p {
		case PanelUnassigned:
			content = m.renderUnassigned(inner-2, panelHeight)
		case PanelAssigned:
			content = m.renderAssigned(inner-2, panelHeight)
		case PanelWorkload:
			content = m.renderWorkload(inner-2, panelHeight)
		}
		border := m.getBorder(p).Width(inner).Height(panelHeight).Padding(0, 1)
		panels = append(panels, border.Render(content))
	}

	rows := []string{header}
	if banner != "" {
		rows = append(rows, banner)
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, panels...), helpBar)
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// getBorder returns the appropriate border style for a panel.
func (m Model) getBorder(panel Panel) lipgloss.Style {
	if m.activePanel == panel {
		return m.styles.ActiveBorder
	}
	return m.styles.InactiveBorder
}

func (m Model) renderHeader() string {
	title := m.styles.Title.Render("Smart Task Prioritization")
	sub := m.styles.Muted.Render("AI-powered assignments for Jira & ServiceNow")

	var status string
	switch {
	case m.running:
		status = m.spinner.View() + " " + m.styles.StatusRunning.Render("Analyzing...")
	case m.lastPass != nil:
		status = m.styles.StatusOK.Render(fmt.Sprintf("Last pass: %d analyzed, %d batches, %s",
			m.lastPass.Analyzed, m.lastPass.Batches, formatDuration(m.lastPass.Duration)))
	default:
		status = m.styles.Muted.Render("No AI pass yet")
	}
	return title + "  " + sub + "\n" + status
}

func (m Model) renderBanner() string {
	width := max(m.width-4, 10)
	switch {
	case m.lastError != nil:
		return m.styles.ErrorBanner.Width(width).Render("Error: " + m.lastError.Error() + "  (x to dismiss)")
	case m.notice != "":
		return m.styles.NoticeBanner.Width(width).Render(m.notice)
	}
	return ""
}

// renderSortBar renders sort options with the active one highlighted.
func (m Model) renderSortBar(keys []tasks.SortKey, active tasks.SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k == active {
			parts[i] = m.styles.SortActive.Render(k.Label())
		} else {
			parts[i] = m.styles.Muted.Render(k.Label())
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderUnassigned(width, height int) string {
	view := m.unassignedView()

	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("Unassigned (%d)", len(view))))
	b.WriteString("\n")
	b.WriteString(m.renderSortBar(tasks.UnassignedSortKeys, m.unassignedSort))
	b.WriteString("\n\n")

	if len(view) == 0 {
		b.WriteString(m.styles.Muted.Render("No unassigned tasks. Great job team!"))
		return b.String()
	}
	m.renderTaskList(&b, view, PanelUnassigned, width, height-3)
	return b.String()
}

func (m Model) renderAssigned(width, height int) string {
	view := m.assignedView()

	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("In Progress / Done (%d)", len(view))))
	b.WriteString("\n")
	b.WriteString(m.renderSortBar(tasks.AssignedSortKeys, m.assignedSort))
	b.WriteString("\n\n")

	if len(view) == 0 {
		b.WriteString(m.styles.Muted.Render("Nothing in progress"))
		return b.String()
	}
	m.renderTaskList(&b, view, PanelAssigned, width, height-3)
	return b.String()
}

// renderTaskList writes two lines and a gap per ticket, scrolled to keep the cursor
// in view.
func (m Model) renderTaskList(b *strings.Builder, view []tasks.Task, panel Panel, width, height int) {
	const linesPerTask = 3
	visible := max(height/linesPerTask, 1)
	selected := m.cursor[panel]
	scroll := 0
	if selected >= visible {
		scroll = selected - visible + 1
	}

	for i := scroll; i < len(view) && i < scroll+visible; i++ {
		line1, line2 := m.renderTask(view[i], width)
		if i == selected && m.activePanel == panel {
			line1 = m.styles.TaskSelected.Render(line1)
		}
		b.WriteString(line1)
		b.WriteString("\n")
		b.WriteString(line2)
		b.WriteString("\n\n")
	}

	if len(view) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" [%d/%d]", selected+1, len(view))))
	}
}

func (m Model) renderTask(t tasks.Task, width int) (string, string) {
	icon, iconStyle := m.priorityIcon(t.Priority)

	score := ""
	if t.AIPriorityScore != nil {
		score = " " + m.scoreStyle(*t.AIPriorityScore).Render(fmt.Sprintf("[%.0f]", *t.AIPriorityScore))
	}
	titleWidth := max(width-len(t.ID)-10, 8)
	line1 := fmt.Sprintf("%s %s %s%s", iconStyle.Render(icon), m.styles.Label.Render(t.ID), truncate(t.Title, titleWidth), score)

	var detail string
	switch {
	case t.HasSuggestion():
		name := tasks.AssociateName(m.roster, t.SuggestedTo)
		if name == "" {
			name = t.SuggestedTo
		}
		detail = m.styles.Suggest.Render("Suggested: " + name)
		if t.AIReasoning != "" {
			detail += m.styles.Muted.Render(" - " + truncate(t.AIReasoning, max(width-len(name)-16, 10)))
		}
	case t.AssignedTo != "" && t.Status == tasks.StatusDone:
		detail = m.styles.StatusOK.Render("Completed by " + m.assigneeName(t.AssignedTo))
	case t.AssignedTo != "":
		detail = m.styles.Muted.Render("Assigned to " + m.assigneeName(t.AssignedTo))
	default:
		detail = m.styles.Muted.Render(string(t.Status))
	}
	line2 := "  " + m.styles.Module.Render(t.Module) + " " + detail
	return line1, line2
}

func (m Model) assigneeName(id string) string {
	if name := tasks.AssociateName(m.roster, id); name != "" {
		return name
	}
	return id
}

func (m Model) renderWorkload(width, height int) string {
	loads := m.workloadView()

	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("Team Workload"))
	b.WriteString("\n\n")

	if len(loads) == 0 {
		b.WriteString(m.styles.Muted.Render("No associates loaded"))
		return b.String()
	}

	const linesPerAssociate = 3
	visible := max((height-2)/linesPerAssociate, 1)
	selected := m.cursor[PanelWorkload]
	scroll := 0
	if selected >= visible {
		scroll = selected - visible + 1
	}

	for i := scroll; i < len(loads) && i < scroll+visible; i++ {
		load := loads[i]
		w := load.Workload

		name := truncate(load.Associate.Name, max(width-20, 8))
		if i == selected && m.activePanel == PanelWorkload {
			name = m.styles.TaskSelected.Render(name)
		} else {
			name = m.styles.Value.Render(name)
		}
		total := m.bandStyle(tasks.WorkloadBand(w.Total)).Render(fmt.Sprintf("%d", w.Total))
		b.WriteString(fmt.Sprintf("%s  %s in progress\n", name, total))

		if w.Total == 0 {
			b.WriteString(m.styles.Muted.Render("  No active tasks."))
		} else {
			var parts []string
			if w.Jira > 0 {
				parts = append(parts, fmt.Sprintf("Jira: %s", m.styles.KindJira.Render(fmt.Sprint(w.Jira))))
			}
			if w.Incident > 0 {
				parts = append(parts, fmt.Sprintf("INC: %s", m.styles.KindIncident.Render(fmt.Sprint(w.Incident))))
			}
			if w.ServiceTask > 0 {
				parts = append(parts, fmt.Sprintf("TASK: %s", m.styles.KindTask.Render(fmt.Sprint(w.ServiceTask))))
			}
			if w.Problem > 0 {
				parts = append(parts, fmt.Sprintf("PRB: %s", m.styles.KindProblem.Render(fmt.Sprint(w.Problem))))
			}
			b.WriteString("  " + strings.Join(parts, "  "))
		}
		b.WriteString("\n")
		if len(load.Associate.Skills) > 0 {
			b.WriteString(m.styles.Muted.Render("  " + truncate(strings.Join(load.Associate.Skills, ", "), max(width-2, 8))))
		}
		b.WriteString("\n")
	}

	if len(loads) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" [%d/%d]", selected+1, len(loads))))
	}
	return b.String()
}

// renderHelpBar renders the help bar at the bottom.
func (m Model) renderHelpBar() string {
	helpItems := []struct {
		key  string
		desc string
	}{
		{"a", "AI prioritize & assign"},
		{"enter", "accept"},
		{"s", "sort"},
		{"tab", "switch panel"},
		{"j/k", "up/down"},
		{"x", "dismiss"},
		{"q", "quit"},
	}

	var parts []string
	for _, item := range helpItems {
		keyStyle := m.styles.HelpKey
		if item.key == "a" && (m.running || len(tasks.Unassigned(m.tasks)) == 0) {
			keyStyle = m.styles.Muted
		}
		parts = append(parts, fmt.Sprintf("%s %s",
			keyStyle.Render(item.key),
			m.styles.HelpText.Render(item.desc),
		))
	}

	return "  " + strings.Join(parts, "  |  ")
}

func (m Model) priorityIcon(p tasks.Priority) (string, lipgloss.Style) {
	switch p {
	case tasks.PriorityHighest:
		return "▲", m.styles.PriorityHighest
	case tasks.PriorityHigh:
		return "▲", m.styles.PriorityHigh
	case tasks.PriorityMedium:
		return "▬", m.styles.PriorityMedium
	case tasks.PriorityLow:
		return "▼", m.styles.PriorityLow
	case tasks.PriorityLowest:
		return "▼", m.styles.PriorityLowest
	}
	return "?", m.styles.Muted
}

func (m Model) scoreStyle(score float64) lipgloss.Style {
	return m.bandStyle(tasks.ScoreBand(score))
}

func (m Model) bandStyle(b tasks.Band) lipgloss.Style {
	switch b {
	case tasks.BandHigh:
		return m.styles.StatusError
	case tasks.BandMedium:
		return m.styles.StatusWarn
	default:
		return m.styles.StatusOK
	}
}

// truncate shortens s to n runes, ending in "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

// Run starts the board and returns the final collection.
func (m *Model) Run() ([]tasks.Task, error) {
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	if fm, ok := final.(Model); ok {
		return fm.Tasks(), nil
	}
	return m.Tasks(), nil
}
