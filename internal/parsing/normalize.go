package parsing

import (
	"regexp"
	"strconv"
	"strings"
)

// scriptMarker identifies cell text polluted by the VPN gateway's inline script
const scriptMarker = "vpn_eval"

// CleanText normalizes a cell's text. Text carrying the gateway script is cut
// down to what follows the last ");" and stripped of quote, semicolon and
// paren characters.
func CleanText(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.Contains(cleaned, scriptMarker) {
		return cleaned
	}

	parts := strings.Split(cleaned, ");")
	if len(parts) > 1 {
		cleaned = parts[len(parts)-1]
	}

	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '"', ';', ')':
			return -1
		}
		return r
	}, cleaned)

	return strings.TrimSpace(cleaned)
}

// Credits, GPA and course counts are never negative, so a sign is not part of the number.
var leadingNumber = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber reads the leading numeric prefix of s, so "4学分" is 4.
// Text with no numeric prefix, including signed text such as "-2", yields 0.
func ParseNumber(s string) float64 {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseCount reads a leading number and truncates it to an int.
func ParseCount(s string) int {
	return int(ParseNumber(s))
}
