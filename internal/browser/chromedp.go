package browser

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeDriver backs Driver with a headful chromedp session.
type ChromeDriver struct {
	allocCtx   context.Context
	cancelAll  context.CancelFunc
	ctx        context.Context
	cancelPage context.CancelFunc
}

// NewChromeDriver launches a headful Chrome instance. Headful (not
// headless) is required so a human can complete an interactive login, per
// its "Headful browser dependency".
func NewChromeDriver(parent context.Context) *ChromeDriver {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", false))
	allocCtx, cancelAll := chromedp.NewExecAllocator(parent, opts...)
	return &ChromeDriver{allocCtx: allocCtx, cancelAll: cancelAll}
}

func (d *ChromeDriver) NewPage(ctx context.Context) error {
	d.ctx, d.cancelPage = chromedp.NewContext(d.allocCtx)
	return chromedp.Run(d.ctx)
}

func (d *ChromeDriver) Goto(ctx context.Context, url string) error {
	return chromedp.Run(d.ctx, chromedp.Navigate(url))
}

func (d *ChromeDriver) WaitFor(ctx context.Context, selector string) error {
	return chromedp.Run(d.ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	return chromedp.Run(d.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (d *ChromeDriver) Evaluate(ctx context.Context, script string, out interface{}) error {
	return chromedp.Run(d.ctx, chromedp.Evaluate(script, out))
}

func (d *ChromeDriver) Cookies(ctx context.Context) (map[string]string, error) {
	var cookies []*network.Cookie
	if err := chromedp.Run(d.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	})); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out, nil
}

func (d *ChromeDriver) Close() error {
	if d.cancelPage != nil {
		d.cancelPage()
	}
	if d.cancelAll != nil {
		d.cancelAll()
	}
	return nil
}
