package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorWarn   = 221 // yellow
	colorFail   = 203 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderStatus colors a contract status: green once executed, yellow while
// awaiting signatures or review, red when cancelled, muted otherwise.
func RenderStatus(status string) string {
	switch status {
	case "fully_executed", "active", "completed":
		return render(colorPass, status)
	case "pending_review", "sent_for_signature", "partially_signed":
		return render(colorWarn, status)
	case "cancelled":
		return render(colorFail, status)
	}
	return render(colorMuted, status)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
