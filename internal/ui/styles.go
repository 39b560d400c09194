// Package ui provides the terminal styling used by the lexsync CLI.
package ui

import "github.com/charmbracelet/lipgloss"

// Semantic colors shared across commands.
var (
	Success = lipgloss.Color("#8BC34A") // green
	Warning = lipgloss.Color("#FFC107") // yellow
	Danger  = lipgloss.Color("#e53935") // red
	Info    = lipgloss.Color("#2196F3") // blue
	Muted   = lipgloss.Color("#808080")
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(Success).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(Danger).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(Info).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(Muted)

	onlineBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(Success).Padding(0, 1).Bold(true)
	offlineBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(Danger).Padding(0, 1).Bold(true)
	pendingBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(Warning).Padding(0, 1).Bold(true)
)

// RenderPass styles a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles a warning marker.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles a failure marker.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles an informational marker.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderOnlineBadge returns the connectivity badge for the status command.
func RenderOnlineBadge(online bool) string {
	if online {
		return onlineBadge.Render("ONLINE")
	}
	return offlineBadge.Render("OFFLINE")
}

// RenderQueueBadge returns the queue-depth badge; green when empty.
func RenderQueueBadge(pending int) string {
	if pending == 0 {
		return onlineBadge.Render("QUEUE EMPTY")
	}
	return pendingBadge.Render("PENDING")
}
