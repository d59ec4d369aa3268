// Package summarize extracts a compact Markdown preview from a stored
// document's full content. It is pure and stateless: every
// extraction step scans the input independently and is skipped, not
// aborted, when its pattern is absent.
package summarize

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	paragraphMaxLen = 200
	jsonBlockMaxLen = 500
	maxJSONBlocks   = 2
	maxTableRows    = 10
)

var (
	metadataCommentPattern = regexp.MustCompile(`(?m)^<!--.*-->\s*$`)
	headingPattern         = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	methodPathPattern      = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH)\s+(/[^\s` + "`" + `]+)`)
	cgiPathPattern         = regexp.MustCompile(`/cgi-bin/[^\s` + "`" + `)]+`)
	openAPIPathPattern     = regexp.MustCompile(`/open-apis/[^\s` + "`" + `)]+`)
	sourceURLPattern       = regexp.MustCompile(`(?m)^<!--\s*source_url:\s*(\S+)\s*-->$`)
	tableRowPattern        = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	tableSeparatorPattern  = regexp.MustCompile(`^\s*\|[\s:|-]+\|\s*$`)
	jsonFencePattern       = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	blockquotePattern      = regexp.MustCompile(`(?m)^>\s?`)
	boldPattern            = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	inlineLinkPattern      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)

	permissionKeywords = []string{
		"权限说明", "权限要求", "使用条件", "调用权限", "接口权限",
		"应用权限", "通讯录权限", "数据权限", "permission", "scope",
	}
)

// Summarize produces a compact Markdown preview of content for docID via a
// seven-step extraction pipeline.
func Summarize(content, docID, sourceID string) string {
	var b strings.Builder

	if meta := extractMetadataComments(content); meta != "" {
		b.WriteString(meta)
		b.WriteString("\n\n")
	}

	if title := extractTitle(content); title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}

	if para := extractLeadParagraph(content); para != "" {
		b.WriteString(para)
		b.WriteString("\n\n")
	}

	if apiInfo := extractAPIInfo(content); apiInfo != "" {
		b.WriteString(apiInfo)
		b.WriteString("\n\n")
	}

	if table := extractFirstTable(content); table != "" {
		b.WriteString(table)
		b.WriteString("\n\n")
	}

	if blocks := extractJSONBlocks(content); blocks != "" {
		b.WriteString(blocks)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "*（完整参数和代码示例请获取全文：/doc/%s）*\n", docID)

	return b.String()
}

func extractMetadataComments(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if metadataCommentPattern.MatchString(trimmed) {
			out = append(out, trimmed)
			continue
		}
		break
	}
	return strings.Join(out, "\n")
}

func extractTitle(content string) string {
	m := headingPattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractLeadParagraph(content string) string {
	lines := strings.Split(content, "\n")
	titleSeen := false
	var para []string

	flush := func() string {
		text := strings.TrimSpace(strings.Join(para, " "))
		if text == "" || isPermissionParagraph(text) {
			return ""
		}
		return truncate(cleanParagraph(text), paragraphMaxLen)
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			if titleSeen {
				if out := flush(); out != "" {
					return out
				}
				para = nil
				continue
			}
			titleSeen = true
			continue
		}
		if !titleSeen {
			continue
		}
		if trimmed == "" {
			if len(para) > 0 {
				if out := flush(); out != "" {
					return out
				}
				para = nil
			}
			continue
		}
		if tableRowPattern.MatchString(trimmed) || strings.HasPrefix(trimmed, "```") {
			if len(para) > 0 {
				if out := flush(); out != "" {
					return out
				}
				para = nil
			}
			continue
		}
		para = append(para, trimmed)
	}
	return flush()
}

func isPermissionParagraph(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range permissionKeywords {
		if strings.Contains(text, kw) || strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func cleanParagraph(text string) string {
	text = blockquotePattern.ReplaceAllString(text, "")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = inlineLinkPattern.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

func extractAPIInfo(content string) string {
	var method, path string
	if m := methodPathPattern.FindStringSubmatch(content); m != nil {
		method, path = m[1], m[2]
	} else if m := cgiPathPattern.FindString(content); m != "" {
		path = m
	} else if m := openAPIPathPattern.FindString(content); m != "" {
		path = m
	}

	var b strings.Builder
	if path != "" {
		if method != "" {
			fmt.Fprintf(&b, "**接口**：`%s %s`", method, path)
		} else {
			fmt.Fprintf(&b, "**接口**：`%s`", path)
		}
	}
	if m := sourceURLPattern.FindStringSubmatch(content); m != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**原文**：%s", m[1])
	}
	return b.String()
}

func extractFirstTable(content string) string {
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines)-1; i++ {
		header := strings.TrimSpace(lines[i])
		sep := strings.TrimSpace(lines[i+1])
		if !tableRowPattern.MatchString(header) || !tableSeparatorPattern.MatchString(sep) {
			continue
		}

		var rows []string
		j := i + 2
		for ; j < len(lines); j++ {
			row := strings.TrimSpace(lines[j])
			if !tableRowPattern.MatchString(row) {
				break
			}
			rows = append(rows, row)
		}

		var b strings.Builder
		b.WriteString(header + "\n" + sep + "\n")
		kept := rows
		remainder := 0
		if len(rows) > maxTableRows {
			kept = rows[:maxTableRows]
			remainder = len(rows) - maxTableRows
		}
		for _, r := range kept {
			b.WriteString(r + "\n")
		}
		if remainder > 0 {
			fmt.Fprintf(&b, "| ……（另有 %d 行） |\n", remainder)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	return ""
}

func extractJSONBlocks(content string) string {
	matches := jsonFencePattern.FindAllStringSubmatchIndex(content, -1)
	if matches == nil {
		return ""
	}

	var b strings.Builder
	count := 0
	for _, m := range matches {
		if count >= maxJSONBlocks {
			break
		}
		blockStart, blockEnd := m[0], m[1]
		bodyStart, bodyEnd := m[2], m[3]
		body := truncate(strings.TrimSpace(content[bodyStart:bodyEnd]), jsonBlockMaxLen)
		label := nearestPrecedingHeading(content, blockStart)

		if count > 0 {
			b.WriteString("\n\n")
		}
		if label != "" {
			fmt.Fprintf(&b, "%s\n", label)
		}
		fmt.Fprintf(&b, "```json\n%s\n```", body)
		count++
		_ = blockEnd
	}
	return b.String()
}

func nearestPrecedingHeading(content string, pos int) string {
	before := content[:pos]
	matches := headingPattern.FindAllStringSubmatch(before, -1)
	if len(matches) == 0 {
		return ""
	}
	return "**" + strings.TrimSpace(matches[len(matches)-1][1]) + "**"
}
