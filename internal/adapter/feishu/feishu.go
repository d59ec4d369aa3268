// Package feishu implements the Feishu (飞书) open platform documentation
// adapter as a thin configuration of the shared webdoc crawler: a catalog
// page of links, each converted to Markdown, with API paths recognized by
// their /open-apis/ prefix.
package feishu

import (
	"regexp"
	"time"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/adapter/webdoc"
	"github.com/specfusion/specfusion/internal/ratelimit"
)

const (
	sourceID   = "feishu"
	sourceName = "飞书开放平台"
	baseURL    = "https://open.feishu.cn"
	catalogURL = baseURL + "/document/home/index"
)

var apiPathPattern = regexp.MustCompile(`/open-apis/[A-Za-z0-9_\-/{}.:]+`)

// New constructs the Feishu adapter.
func New() *webdoc.Adapter {
	return webdoc.New(webdoc.Config{
		SourceID:        sourceID,
		SourceName:      sourceName,
		BaseURL:         baseURL,
		CatalogURL:      catalogURL,
		LinkSelector:    "a[href]",
		ContentSelector: "article, .markdown-body, main",
		APIPathRegex:    apiPathPattern,
		Limiter:         ratelimit.NewFixedDelay(800 * time.Millisecond),
	})
}

var _ adapter.Adapter = (*webdoc.Adapter)(nil)
