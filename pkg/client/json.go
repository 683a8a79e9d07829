package client

import (
	"regexp"
	"strings"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineSlash  = regexp.MustCompile(`(?m)//.*$`)
	reTrailComma   = regexp.MustCompile(`,(\s*[}\]])`)
)

// SanitizeModelJSON removes code fences, comments, and trailing commas from a
// model's JSON response and slices out the outermost object. Vision models
// routinely wrap JSON in markdown or annotate it.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present.
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineSlash.ReplaceAllString(raw, "")
	raw = reTrailComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...} or [...].
	start := strings.IndexAny(raw, "{[")
	if start >= 0 {
		closer := "}"
		if raw[start] == '[' {
			closer = "]"
		}
		if end := strings.LastIndex(raw, closer); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
