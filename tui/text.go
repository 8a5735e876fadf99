package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	textStyleColor      = lipgloss.AdaptiveColor{Light: "#36EEE0", Dark: "#00FFFF"}
	mutedStyleColor     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	warningStyleColor   = lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FFA500"}
	titleStyleColor     = lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"}
	secondaryStyleColor = lipgloss.AdaptiveColor{Light: "#214358", Dark: "#AEB8C4"}
	sqlStyle            = lipgloss.NewStyle().Foreground(textStyleColor)
)

func render(style lipgloss.Style, text string) string {
	if !HasTTY {
		return text
	}
	return style.Render(text)
}

func Title(text string) string {
	return render(lipgloss.NewStyle().Bold(true).Foreground(titleStyleColor), text)
}

func Bold(text string) string {
	return render(lipgloss.NewStyle().Bold(true).Foreground(textStyleColor), text)
}

func Secondary(text string) string {
	return render(lipgloss.NewStyle().Foreground(secondaryStyleColor), text)
}

func Muted(text string) string {
	return render(lipgloss.NewStyle().Foreground(mutedStyleColor), text)
}

func Warning(text string) string {
	return render(lipgloss.NewStyle().Foreground(warningStyleColor), text)
}

// SQL highlights a statement or pattern.
func SQL(text string) string {
	return render(sqlStyle, text)
}

// MaxWidth truncates text to width display cells, marking the cut with "...".
func MaxWidth(text string, width int) string {
	if width < 4 || lipgloss.Width(text) <= width {
		return text
	}
	r := []rune(text)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-3 {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
