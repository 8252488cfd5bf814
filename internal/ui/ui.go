// Package ui provides console rendering helpers for CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// RenderPass styles text for success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles text for warnings.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles text for failures.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles text for informational markers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderDim styles secondary detail text.
func RenderDim(s string) string { return dimStyle.Render(s) }
