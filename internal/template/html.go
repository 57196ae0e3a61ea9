package template

import (
	"html"
	"strings"
)

// ToHTML converts a rendered document body into escaped paragraph HTML.
// Blank lines separate paragraphs; single newlines become <br>.
func ToHTML(body string) string {
	trimmed := strings.TrimSuffix(NormalizeText(body), "\n")
	if strings.TrimSpace(trimmed) == "" {
		return "<p></p>\n"
	}
	paragraphs := strings.Split(trimmed, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.Trim(p, "\n")
		if p == "" {
			continue
		}
		escaped := html.EscapeString(p)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		out = append(out, "<p>"+escaped+"</p>")
	}
	return strings.Join(out, "\n") + "\n"
}
