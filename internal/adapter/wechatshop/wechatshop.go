// Package wechatshop implements the WeChat Shop (微信小商店) developer
// documentation adapter as a thin configuration of the shared webdoc
// crawler, recognizing api.weixin.qq.com endpoints in converted content.
package wechatshop

import (
	"regexp"
	"time"

	"github.com/specfusion/specfusion/internal/adapter/webdoc"
	"github.com/specfusion/specfusion/internal/ratelimit"
)

const (
	sourceID   = "wechat_shop"
	sourceName = "微信小商店"
	baseURL    = "https://developers.weixin.qq.com"
	catalogURL = baseURL + "/doc/store/shop/API/index.html"
)

var apiPathPattern = regexp.MustCompile(`https://api\.weixin\.qq\.com/[A-Za-z0-9_\-/?&=]+`)

// New constructs the WeChat Shop adapter.
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
