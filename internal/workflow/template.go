package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{name}} forms: {{context}}, {{step2.output}},
// {{userInput1}}, {{initialContext.key}}, and plain {{key}}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)?)\s*\}\}`)

var stepOutputPattern = regexp.MustCompile(`^step(\d+)\.output$`)

// ProcessPromptTemplate renders a step prompt against the accumulated
// context map. Placeholders with no matching key are left untouched so a
// half-filled template is visible in the step's recorded input rather than
// silently collapsing to empty strings.
func ProcessPromptTemplate(template string, accumulated map[string]any) string {
	if accumulated == nil {
		accumulated = map[string]any{}
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))

		// {{context}} expands to the whole accumulated map.
		if name == "context" {
			return stringify(accumulated)
		}

		// {{stepN.output}} reads the merged stepNOutput key.
		if m := stepOutputPattern.FindStringSubmatch(name); m != nil {
			if v, ok := accumulated["step"+m[1]+"Output"]; ok {
				return stringify(v)
			}
			return match
		}

		// {{initialContext.key}} reads one key of the initial context.
		if after, ok := strings.CutPrefix(name, "initialContext."); ok {
			if initial, ok := accumulated["initialContext"].(map[string]any); ok {
				if v, ok := initial[after]; ok {
					return stringify(v)
				}
			}
			return match
		}

		// {{userInputN}} and plain {{key}} are direct lookups.
		if v, ok := accumulated[name]; ok {
			return stringify(v)
		}
		return match
	})
}

// stringify renders a context value for prompt insertion: strings verbatim,
// everything else as JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
