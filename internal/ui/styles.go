package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds lipgloss styles for the UI.
type Styles struct {
	// Panel borders
	ActiveBorder   lipgloss.Style
	InactiveBorder lipgloss.Style

	// Text styles
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Module   lipgloss.Style
	Suggest  lipgloss.Style

	// Status and band indicators
	StatusOK      lipgloss.Style
	StatusWarn    lipgloss.Style
	StatusError   lipgloss.Style
	StatusRunning lipgloss.Style

	// Priority markers
	PriorityHighest lipgloss.Style
	PriorityHigh    lipgloss.Style
	PriorityMedium  lipgloss.Style
	PriorityLow     lipgloss.Style
	PriorityLowest  lipgloss.Style

	// Workload breakdown by ticket kind
	KindJira     lipgloss.Style
	KindIncident lipgloss.Style
	KindTask     lipgloss.Style
	KindProblem  lipgloss.Style

	// Lists
	TaskSelected lipgloss.Style
	SortActive   lipgloss.Style

	// Banners
	ErrorBanner  lipgloss.Style
	NoticeBanner lipgloss.Style

	// Help bar
	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

// newStyles creates the default style set.
func newStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#3b82f6"}
	purple := lipgloss.AdaptiveColor{Light: "#7e22ce", Dark: "#c084fc"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	orange := lipgloss.AdaptiveColor{Light: "#c2410c", Dark: "#fb923c"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#58a6ff"}

	return &Styles{
		ActiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight),

		InactiveBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333", Dark: "#ccc"}),

		Label: lipgloss.NewStyle().
			Foreground(subtle),

		Value: lipgloss.NewStyle().
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(subtle),

		Module: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333", Dark: "#cbd5e1"}).
			Background(lipgloss.AdaptiveColor{Light: "#e2e8f0", Dark: "#334155"}).
			Padding(0, 1),

		Suggest: lipgloss.NewStyle().
			Foreground(purple),

		StatusOK: lipgloss.NewStyle().
			Foreground(green).
			Bold(true),

		StatusWarn: lipgloss.NewStyle().
			Foreground(yellow).
			Bold(true),

		StatusError: lipgloss.NewStyle().
			Foreground(red).
			Bold(true),

		StatusRunning: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true),

		PriorityHighest: lipgloss.NewStyle().Foreground(red).Bold(true),
		PriorityHigh:    lipgloss.NewStyle().Foreground(orange).Bold(true),
		PriorityMedium:  lipgloss.NewStyle().Foreground(yellow).Bold(true),
		PriorityLow:     lipgloss.NewStyle().Foreground(blue).Bold(true),
		PriorityLowest:  lipgloss.NewStyle().Foreground(green).Bold(true),

		KindJira:     lipgloss.NewStyle().Foreground(blue).Bold(true),
		KindIncident: lipgloss.NewStyle().Foreground(red).Bold(true),
		KindTask:     lipgloss.NewStyle().Foreground(green).Bold(true),
		KindProblem:  lipgloss.NewStyle().Foreground(yellow).Bold(true),

		TaskSelected: lipgloss.NewStyle().
			Background(highlight).
			Foreground(lipgloss.Color("#fff")).
			Bold(true),

		SortActive: lipgloss.NewStyle().
			Background(highlight).
			Foreground(lipgloss.Color("#fff")).
			Padding(0, 1),

		ErrorBanner: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(red).
			Foreground(red).
			Align(lipgloss.Center),

		NoticeBanner: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(yellow).
			Foreground(yellow).
			Align(lipgloss.Center),

		HelpKey: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),

		HelpText: lipgloss.NewStyle().
			Foreground(subtle),
	}
}
