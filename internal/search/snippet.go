package search

import (
	"regexp"
	"strings"
)

const snippetWindow = 200

var markdownDecoration = regexp.MustCompile("(?s)```.*?```|`[^`]*`|[#*>\\[\\]()~-]")

// Snippet implements its snippet extraction: strip Markdown decoration,
// collapse whitespace, then produce a window of at most snippetWindow runes
// centered on the first occurrence of query, falling back to the first
// token, then to the prefix of the content.
func Snippet(content, query string, tokens []string) string {
	clean := collapseWhitespace(markdownDecoration.ReplaceAllString(content, " "))
	if clean == "" {
		return ""
	}
	runes := []rune(clean)

	center := findFold(runes, strings.TrimSpace(query))
	if center < 0 {
		for _, tok := range tokens {
			if idx := findFold(runes, tok); idx >= 0 {
				center = idx
				break
			}
		}
	}
	if center < 0 {
		center = 0
	}

	return window(runes, center)
}

func window(runes []rune, center int) string {
	if len(runes) <= snippetWindow {
		return string(runes)
	}

	half := snippetWindow / 2
	start := center - half
	end := center + half
	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(runes) {
		shift := end - len(runes)
		end = len(runes)
		start -= shift
		if start < 0 {
			start = 0
		}
	}
	if end-start > snippetWindow {
		end = start + snippetWindow
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString("…")
	}
	return b.String()
}

func findFold(runes []rune, needle string) int {
	if needle == "" {
		return -1
	}
	haystack := strings.ToLower(string(runes))
	needleLower := strings.ToLower(needle)
	byteIdx := strings.Index(haystack, needleLower)
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(haystack[:byteIdx]))
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
