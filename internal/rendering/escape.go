package rendering

import "strings"

// EscapeMarkdown escapes characters that would otherwise be read as Markdown
// syntax inside headings, list items and table cells.
// Special characters: \ ` * _ [ ] | # < >
func EscapeMarkdown(text string) string {
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text) * 2)

	for _, r := range text {
		switch r {
		case '\\', '`', '*', '_', '[', ']', '|', '#':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '<':
			result.WriteString("&lt;")
		case '>':
			result.WriteString("&gt;")
		case '\n', '\r':
			result.WriteRune(' ')
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}
