// Package ui holds terminal presentation helpers for the CLI.
package ui

import "fmt"

// ANSI256 color codes used by the diff and list renderers.
const (
	colorAdded   = 114 // green
	colorRemoved = 174 // red
	colorChanged = 179 // yellow
	colorMuted   = 245 // medium gray
)

var noColor bool

// RenderAdded returns s in the added (green) color.
func RenderAdded(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAdded, s)
}

// RenderRemoved returns s in the removed (red) color.
func RenderRemoved(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorRemoved, s)
}

// RenderChanged returns s in the changed (yellow) color.
func RenderChanged(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorChanged, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
