package rendering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Empty", "", ""},
		{"Plain Chinese", "数据结构", "数据结构"},
		{"Pipe in table cell", "A|B", `A\|B`},
		{"Emphasis markers", "*bold* _it_", `\*bold\* \_it\_`},
		{"Brackets", "[C101]", `\[C101\]`},
		{"Heading marker", "#1", `\#1`},
		{"Backslash", `a\b`, `a\\b`},
		{"Angle brackets", "<b>", "&lt;b&gt;"},
		{"Newlines flattened", "a\nb", "a b"},
		{"Parens kept", "微积分A(1)", "微积分A(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeMarkdown(tt.input))
		})
	}
}
