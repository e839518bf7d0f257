package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// Phase names mirror engine.Phase values; the theme stays free of engine
// imports so view code can be tested on plain strings.
const (
	PhaseAdded        = "added"
	PhaseInitializing = "initializing"
	PhaseScanning     = "scanning"
	PhaseDiffing      = "diffing"
	PhaseSettled      = "settled"
)

type Theme struct {
	Title      lipgloss.Style
	ModePill   lipgloss.Style
	Section    lipgloss.Style
	HostCount  lipgloss.Style
	ActiveLine lipgloss.Style
	MetaLabel  lipgloss.Style
	MetaValue  lipgloss.Style
	StateIdle  lipgloss.Style
	StateWarn  lipgloss.Style
	StateLoad  lipgloss.Style

	URLSettled lipgloss.Style
	URLBusy    lipgloss.Style
	URLNew     lipgloss.Style
	URLChanged lipgloss.Style

	BadgeAdded    lipgloss.Style
	BadgeInit     lipgloss.Style
	BadgeScanning lipgloss.Style
	BadgeDiffing  lipgloss.Style
	BadgeSettled  lipgloss.Style
}

func Default() Theme {
	cpRosewater := lipgloss.Color("#f5e0dc")
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpBlue := lipgloss.Color("#89b4fa")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext0 := lipgloss.Color("#a6adc8")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")

	return Theme{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		ModePill:   lipgloss.NewStyle().Foreground(cpLavender).Background(cpSurface0).Padding(0, 1),
		Section:    lipgloss.NewStyle().Bold(true).Foreground(cpTeal),
		HostCount:  lipgloss.NewStyle().Foreground(cpYellow).Bold(true),
		ActiveLine: lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText),
		MetaLabel:  lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue:  lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle:  lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn:  lipgloss.NewStyle().Foreground(cpRed),
		StateLoad:  lipgloss.NewStyle().Foreground(cpPeach),

		URLSettled: lipgloss.NewStyle().Foreground(cpSubtext0),
		URLBusy:    lipgloss.NewStyle().Italic(true).Foreground(cpLavender),
		URLNew:     lipgloss.NewStyle().Bold(true).Foreground(cpText),
		URLChanged: lipgloss.NewStyle().Bold(true).Foreground(cpRosewater),

		BadgeAdded:    lipgloss.NewStyle().Foreground(cpOverlay1),
		BadgeInit:     lipgloss.NewStyle().Foreground(cpBlue),
		BadgeScanning: lipgloss.NewStyle().Foreground(cpPeach),
		BadgeDiffing:  lipgloss.NewStyle().Foreground(cpYellow),
		BadgeSettled:  lipgloss.NewStyle().Foreground(cpGreen),
	}
}

// StyleURL colours a URL label by phase. A settled URL with diff output is
// highlighted so fresh results stand out.
func (t Theme) StyleURL(phase string, hasDiff bool, label string) string {
	if label == "" {
		return label
	}
	switch phase {
	case PhaseScanning, PhaseDiffing, PhaseInitializing:
		return t.URLBusy.Render(label)
	case PhaseAdded:
		return t.URLNew.Render(label)
	}
	if hasDiff {
		return t.URLChanged.Render(label)
	}
	return t.URLSettled.Render(label)
}

func (t Theme) Badge(phase string) string {
	switch phase {
	case PhaseAdded:
		return t.BadgeAdded.Render("new")
	case PhaseInitializing:
		return t.BadgeInit.Render("init")
	case PhaseScanning:
		return t.BadgeScanning.Render("scan")
	case PhaseDiffing:
		return t.BadgeDiffing.Render("diff")
	case PhaseSettled:
		return t.BadgeSettled.Render("ok")
	}
	return ""
}

func (t Theme) RenderActiveLine(active bool, line string) string {
	if !active {
		return line
	}
	return t.ActiveLine.Render(line)
}
