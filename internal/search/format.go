package search

import (
	"fmt"
	"strings"

	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/pkg/utils"
)

const maxDisplayQueryLen = 120

// FormatMarkdown renders a SearchResponse as the Markdown document returned
// by GET /api/search.
func FormatMarkdown(resp *models.SearchResponse, sourceLabel func(id string) string) string {
	var b strings.Builder

	label := "全部"
	if resp.Source != "" {
		label = sourceLabel(resp.Source)
	}
	query := utils.Truncate(resp.Query, maxDisplayQueryLen)
	fmt.Fprintf(&b, "## 搜索结果：%s（来源：%s，共 %d 条，耗时 %dms）\n\n", query, label, resp.Total, resp.TookMS)

	if len(resp.Results) == 0 {
		b.WriteString(zeroResultDiagnostic(resp))
		return b.String()
	}

	for _, r := range resp.Results {
		writeResultBlock(&b, r)
	}

	return b.String()
}

func writeResultBlock(b *strings.Builder, r *models.SearchResult) {
	doc := r.Document
	fmt.Fprintf(b, "### %s（score: %.2f）\n\n", doc.Title, r.Score)

	sourceLine := fmt.Sprintf("来源：%s", doc.SourceID)
	if doc.DevMode != "" {
		sourceLine += fmt.Sprintf(" / %s", doc.DevMode)
	}
	if len(r.OtherModes) > 0 {
		names := make([]string, 0, len(r.OtherModes))
		for _, m := range r.OtherModes {
			names = append(names, string(m))
		}
		sourceLine += fmt.Sprintf("（另见：%s）", strings.Join(names, "、"))
	}
	b.WriteString(sourceLine + "\n\n")

	if doc.APIPath != "" {
		fmt.Fprintf(b, "接口：`%s`\n\n", doc.APIPath)
	}
	if r.Snippet != "" {
		fmt.Fprintf(b, "%s\n\n", r.Snippet)
	}
	fmt.Fprintf(b, "文档 ID：`%s`", doc.ID)
	if doc.SourceURL != "" {
		fmt.Fprintf(b, " · 原文：%s", doc.SourceURL)
	}
	if !doc.LastUpdated.IsZero() {
		fmt.Fprintf(b, " · 更新于：%s", doc.LastUpdated.Format("2006-01-02"))
	}
	b.WriteString("\n\n")
}

func zeroResultDiagnostic(resp *models.SearchResponse) string {
	var b strings.Builder
	b.WriteString("未找到匹配结果。可尝试：\n\n")
	if resp.Source != "" {
		b.WriteString("- 去掉 `source` 过滤条件\n")
	}
	b.WriteString("- 缩短或简化搜索关键词\n")
	b.WriteString("- 查看 `/sources` 了解可用来源\n")
	b.WriteString("- 查看 `/categories` 按分类浏览\n")
	return b.String()
}
