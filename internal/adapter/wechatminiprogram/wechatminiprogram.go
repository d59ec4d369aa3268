// Package wechatminiprogram implements the WeChat Mini Program developer
// documentation adapter as a thin configuration of the shared webdoc
// crawler, recognizing api.weixin.qq.com endpoints in converted content.
package wechatminiprogram

import (
	"regexp"
	"time"

	"github.com/specfusion/specfusion/internal/adapter/webdoc"
	"github.com/specfusion/specfusion/internal/ratelimit"
)

const (
	sourceID   = "wechat_miniprogram"
	sourceName = "微信小程序"
	baseURL    = "https://developers.weixin.qq.com"
	catalogURL = baseURL + "/miniprogram/dev/framework/"
)

var apiPathPattern = regexp.MustCompile(`https://api\.weixin\.qq\.com/[A-Za-z0-9_\-/?&=]+`)

// New constructs the WeChat Mini Program adapter.
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
