// Package douyin implements the Douyin (抖音) open platform documentation
// adapter as a thin configuration of the shared webdoc crawler.
package douyin

import (
	"time"

	"github.com/specfusion/specfusion/internal/adapter/webdoc"
	"github.com/specfusion/specfusion/internal/ratelimit"
)

const (
	sourceID   = "douyin"
	sourceName = "抖音开放平台"
	baseURL    = "https://developer.open-douyin.com"
	catalogURL = baseURL + "/docs"
)

// New constructs the Douyin adapter.
func New() *webdoc.Adapter {
	return webdoc.New(webdoc.Config{
		SourceID:        sourceID,
		SourceName:      sourceName,
		BaseURL:         baseURL,
		CatalogURL:      catalogURL,
		LinkSelector:    "a[href]",
		ContentSelector: "article, .markdown-body, main",
		Limiter:         ratelimit.NewFixedDelay(800 * time.Millisecond),
	})
}
