// Package render substitutes {{name}} placeholders in message templates.
//
// Placeholders without a matching variable are left in the output
// verbatim. Callers that need strictness can compare VariableNames against
// the variables they supply.
package render

import "regexp"

var placeholder = regexp.MustCompile(`\{\{([\w.-]+)\}\}`)

// Render replaces every {{key}} in text with vars[key]. The substitution
// is a single pass, so values that themselves contain placeholders are not
// expanded again.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		key := m[2 : len(m)-2]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

// VariableNames lists the placeholder names in text in order of
// appearance, duplicates included.
func VariableNames(text string) []string {
	matches := placeholder.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
