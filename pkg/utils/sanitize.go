package utils

import (
	"regexp"
	"strings"
)

const MaxTextLength = 2000

var (
	angleBrackets = regexp.MustCompile(`[<>]`)
	scriptSchemes = regexp.MustCompile(`(?i)(javascript|data|vbscript):`)
)

// SanitizeText trims input, drops angle brackets and script-ish URL schemes,
// and truncates to MaxTextLength runes.
func SanitizeText(input string) string {
	s := strings.TrimSpace(input)
	s = angleBrackets.ReplaceAllString(s, "")
	s = scriptSchemes.ReplaceAllString(s, "")
	return truncateRunes(s, MaxTextLength)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
