package main

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/ui"
)

// Patterns used to colorize Cobra's help output.
var (
	// Section headers: unindented line ending with ":" (e.g. "Contracts:", "Flags:").
	reGroupHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)

	// Command names: two-space indent, then a word, then two-or-more spaces
	// before the description.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)

	// Flag type annotations: e.g. "--url string", "--status strings".
	reFlagType = regexp.MustCompile(`(--?\S+\s+)(stringToString|stringArray|strings|string|int|duration)\b`)

	// Only (default "...") annotations, so [flags] and [command] stay plain.
	reDefault = regexp.MustCompile(`\(default "[^"]*"\)`)

	// The status legend in contract help.
	reStatuses = regexp.MustCompile(`(?m)^(Statuses: )(.+)$`)
)

// helpText renders the description followed by the usage block, as Cobra's
// default help template does.
func helpText(cmd *cobra.Command) string {
	var b strings.Builder
	if desc := strings.TrimRight(cmp.Or(cmd.Long, cmd.Short), " \n"); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}
	b.WriteString(cmd.UsageString())
	return b.String()
}

// colorizedHelpFunc returns a Cobra help function that styles the help text
// with ANSI colors when the terminal supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		text := helpText(cmd)
		if ui.ShouldUseColor() {
			text = colorizeHelpOutput(text)
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
	}
}

// colorizeHelpOutput applies ANSI styling to plain-text help.
func colorizeHelpOutput(s string) string {
	s = reStatuses.ReplaceAllStringFunc(s, func(match string) string {
		parts := reStatuses.FindStringSubmatch(match)
		names := strings.Split(parts[2], ", ")
		for i, n := range names {
			names[i] = ui.RenderStatus(n)
		}
		return parts[1] + strings.Join(names, ", ")
	})
	s = reGroupHeader.ReplaceAllStringFunc(s, func(match string) string {
		return ui.RenderAccent(strings.TrimSpace(match))
	})
	s = reCommand.ReplaceAllStringFunc(s, func(match string) string {
		parts := reCommand.FindStringSubmatch(match)
		return parts[1] + ui.RenderCommand(parts[2]) + parts[3]
	})
	s = reFlagType.ReplaceAllStringFunc(s, func(match string) string {
		parts := reFlagType.FindStringSubmatch(match)
		return parts[1] + ui.RenderMuted(parts[2])
	})
	return reDefault.ReplaceAllStringFunc(s, ui.RenderMuted)
}
