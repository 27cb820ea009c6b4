package telemetry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rgbPattern = regexp.MustCompile(`rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)`)

// NormalizeHex canonicalizes a hex color ("#ABC", "#aabbcc") to lowercase
// six-digit form.
func NormalizeHex(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return "#" + s, true
}

// NormalizeCSSColor converts a computed-style rgb()/rgba() value or hex
// string to canonical hex for comparison.
func NormalizeCSSColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return NormalizeHex(s)
	}
	m := rgbPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	r, _ := strconv.Atoi(m[1])
	g, _ := strconv.Atoi(m[2])
	b, _ := strconv.Atoi(m[3])
	if r > 255 || g > 255 || b > 255 {
		return "", false
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b), true
}
