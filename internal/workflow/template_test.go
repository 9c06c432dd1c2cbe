package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessPromptTemplate(t *testing.T) {
	accumulated := map[string]any{
		"topic":       "quarterly report",
		"step0Output": "draft text",
		"userInput1":  map[string]any{"approved": true},
		"initialContext": map[string]any{
			"audience": "executives",
		},
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "plain key",
			template: "Write about {{topic}}.",
			want:     "Write about quarterly report.",
		},
		{
			name:     "step output",
			template: "Review this: {{step0.output}}",
			want:     "Review this: draft text",
		},
		{
			name:     "user input renders as JSON",
			template: "Feedback was {{userInput1}}",
			want:     `Feedback was {"approved":true}`,
		},
		{
			name:     "initial context key",
			template: "Audience: {{initialContext.audience}}",
			want:     "Audience: executives",
		},
		{
			name:     "unknown placeholder left untouched",
			template: "Value: {{missing}} and {{step9.output}}",
			want:     "Value: {{missing}} and {{step9.output}}",
		},
		{
			name:     "unknown initial context key left untouched",
			template: "{{initialContext.nope}}",
			want:     "{{initialContext.nope}}",
		},
		{
			name:     "whitespace inside braces",
			template: "{{ topic }}",
			want:     "quarterly report",
		},
		{
			name:     "multiple placeholders",
			template: "{{topic}}: {{step0.output}}",
			want:     "quarterly report: draft text",
		},
		{
			name:     "no placeholders",
			template: "static prompt",
			want:     "static prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProcessPromptTemplate(tt.template, accumulated))
		})
	}
}

func TestProcessPromptTemplateFullContext(t *testing.T) {
	got := ProcessPromptTemplate("Context: {{context}}", map[string]any{"a": 1})
	assert.Equal(t, `Context: {"a":1}`, got)
}

func TestProcessPromptTemplateNilContext(t *testing.T) {
	got := ProcessPromptTemplate("{{context}} {{missing}}", nil)
	assert.Equal(t, "{} {{missing}}", got)
}
