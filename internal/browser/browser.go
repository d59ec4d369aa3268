// Package browser provides the injectable headful-browser dependency:
// Wecom's interactive cookie login, and the Dingtalk/Xiaohongshu
// single-page adapters, depend on this small interface rather than
// chromedp directly.
package browser

import "context"

// Driver is the minimal headful-browser contract adapters depend on.
type Driver interface {
	NewPage(ctx context.Context) error
	Goto(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, script string, out interface{}) error
	Cookies(ctx context.Context) (map[string]string, error)
	Close() error
}
