package utils

import "unicode/utf8"

// Rough characters-per-token ratio used for prompt budgeting. Report payloads
// are mostly JSON keys and numbers, which tokenize close to this rate.
const charsPerToken = 4

// CountTokens estimates how many tokens text will consume, rounding up to
// whole tokens. The empty string counts as zero.
func CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// TruncateToTokenLimit cuts text so CountTokens on the result stays within
// limit. A non-positive limit truncates everything.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	budget := limit * charsPerToken
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget])
}

// TokenBreakdown estimates tokens per labeled prompt section.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for label, text := range sections {
		out[label] = CountTokens(text)
	}
	return out
}
