// Package template renders contract templates: ordered named sections with
// {{variable}} placeholders substituted from a flat value map.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/alfredjeanlab/podium/internal/model"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

var keyRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Render substitutes values into every section of t and joins the result
// into a single document body. Absent or empty values are replaced with a
// bracketed placeholder such as [SPEAKER FEE]. Output is deterministic.
func Render(t *model.ContractTemplate, values map[string]string) (string, error) {
	return RenderWithEdits(t, values, nil)
}

// RenderWithEdits is Render with the bodies of editable sections replaced,
// by section id, before substitution.
func RenderWithEdits(t *model.ContractTemplate, values map[string]string, edits map[string]string) (string, error) {
	if err := Validate(t); err != nil {
		return "", err
	}
	sections := Ordered(t)

	if len(edits) > 0 {
		byID := make(map[string]int, len(sections))
		for i, s := range sections {
			byID[s.ID] = i
		}
		for _, id := range sortedKeys(edits) {
			i, ok := byID[id]
			if !ok {
				return "", &model.TemplateInvalidError{Reason: fmt.Sprintf("edit names unknown section %q", id)}
			}
			if !sections[i].Editable {
				return "", &model.TemplateInvalidError{Reason: fmt.Sprintf("section %q is not editable", id)}
			}
			sections[i].Body = edits[id]
			if sections[i].Required && strings.TrimSpace(sections[i].Body) == "" {
				return "", &model.TemplateInvalidError{Reason: fmt.Sprintf("required section %q has an empty body", id)}
			}
		}
	}

	var b strings.Builder
	if name := strings.TrimSpace(t.Name); name != "" {
		b.WriteString(name)
		b.WriteString("\n\n")
	}
	for _, s := range sections {
		if title := strings.TrimSpace(s.Title); title != "" {
			b.WriteString(title)
			b.WriteString("\n")
		}
		b.WriteString(Substitute(s.Body, values))
		b.WriteString("\n\n")
	}
	return NormalizeText(b.String()), nil
}

// Substitute replaces every {{key}} in text with values[key], or with the
// key's placeholder when the value is absent or empty.
func Substitute(text string, values map[string]string) string {
	return placeholderRE.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderRE.FindStringSubmatch(m)[1]
		if v := values[key]; v != "" {
			return v
		}
		return PlaceholderFor(key)
	})
}

// PlaceholderFor returns the bracketed stand-in for an unfilled key.
func PlaceholderFor(key string) string {
	return "[" + strings.ToUpper(strings.ReplaceAll(key, "_", " ")) + "]"
}

// Placeholders returns the sorted distinct keys referenced by t's sections.
func Placeholders(t *model.ContractTemplate) []string {
	seen := map[string]bool{}
	for _, s := range t.Sections {
		for _, m := range placeholderRE.FindAllStringSubmatch(s.Body, -1) {
			seen[m[1]] = true
		}
	}
	return sortedKeys(seen)
}

// Ordered returns a copy of t's sections sorted by Order. Sections sharing
// an Order keep their declaration order.
func Ordered(t *model.ContractTemplate) []model.Section {
	out := append([]model.Section(nil), t.Sections...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Validate checks that t can be rendered.
func Validate(t *model.ContractTemplate) error {
	if t == nil {
		return &model.TemplateInvalidError{Reason: "template is nil"}
	}
	if len(t.Sections) == 0 {
		return &model.TemplateInvalidError{Reason: "template has no sections"}
	}
	ids := map[string]bool{}
	for i, s := range t.Sections {
		if s.ID != "" {
			if ids[s.ID] {
				return &model.TemplateInvalidError{Reason: fmt.Sprintf("duplicate section id %q", s.ID)}
			}
			ids[s.ID] = true
		}
		if s.Required && strings.TrimSpace(s.Body) == "" {
			name := s.ID
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return &model.TemplateInvalidError{Reason: fmt.Sprintf("required section %q has an empty body", name)}
		}
	}
	keys := map[string]bool{}
	for _, v := range t.Variables {
		if !keyRE.MatchString(v.Key) {
			return &model.TemplateInvalidError{Reason: fmt.Sprintf("invalid variable key %q", v.Key)}
		}
		if keys[v.Key] {
			return &model.TemplateInvalidError{Reason: fmt.Sprintf("duplicate variable key %q", v.Key)}
		}
		keys[v.Key] = true
		if !v.Type.IsValid() {
			return &model.TemplateInvalidError{Reason: fmt.Sprintf("variable %q has unknown type %q", v.Key, v.Type)}
		}
	}
	return nil
}

// NormalizeText converts line endings to \n, strips trailing whitespace from
// each line and ends the text with exactly one newline.
func NormalizeText(in string) string {
	s := strings.ReplaceAll(in, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
