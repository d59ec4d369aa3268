// Package youzan implements the Youzan (有赞) open platform documentation
// adapter as a thin configuration of the shared webdoc crawler.
package youzan

import (
	"regexp"
	"time"

	"github.com/specfusion/specfusion/internal/adapter/webdoc"
	"github.com/specfusion/specfusion/internal/ratelimit"
)

const (
	sourceID   = "youzan"
	sourceName = "有赞开放平台"
	baseURL    = "https://doc.youzanyun.com"
	catalogURL = baseURL + "/docs"
)

var apiPathPattern = regexp.MustCompile(`(?:youzan\.[a-z0-9.]+|/v\d+/[A-Za-z0-9_\-/{}.]+)`)

// New constructs the Youzan adapter.
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
