// Package dingtalk implements the DingTalk (钉钉) open platform
// documentation adapter. Its catalog and content pages are rendered
// client-side, so extraction drives a single headful browser page rather
// than issuing plain HTTP requests; because one page cannot navigate to
// two URLs at once, every browser interaction is serialized behind a
// mutex regardless of how many worker goroutines call in concurrently.
package dingtalk

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/browser"
	"github.com/specfusion/specfusion/internal/ratelimit"
	pkgmd "github.com/specfusion/specfusion/pkg/markdown"
)

const (
	sourceID   = "dingtalk"
	sourceName = "钉钉开放平台"
	baseURL    = "https://open.dingtalk.com"
	catalogURL = baseURL + "/document/orgapp-server/overview-of-server-api"
)

var apiPathPattern = regexp.MustCompile(`(?:/v\d+(?:\.\d+)?/[A-Za-z0-9_\-/{}.]+|oapi\.dingtalk\.com/[A-Za-z0-9_\-/.]+)`)

// catalogLink is the shape returned by the page-side link-collection script.
type catalogLink struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

// Adapter implements adapter.Adapter for DingTalk's browser-rendered docs.
type Adapter struct {
	mu      sync.Mutex
	driver  browser.Driver
	limiter ratelimit.Limiter
	conv    *pkgmd.Converter
}

// New constructs the DingTalk adapter around an injected browser driver.
func New(driver browser.Driver) *Adapter {
	return &Adapter{
		driver:  driver,
		limiter: ratelimit.NewFixedDelay(time.Second),
		conv:    pkgmd.NewConverter(),
	}
}

func (a *Adapter) SourceID() string   { return sourceID }
func (a *Adapter) SourceName() string { return sourceName }

// FetchCatalog loads the overview page and collects every documentation
// link found in the left navigation tree.
func (a *Adapter) FetchCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := a.driver.NewPage(ctx); err != nil {
		return nil, fmt.Errorf("dingtalk: new page: %w", err)
	}
	defer a.driver.Close()

	if err := a.driver.Goto(ctx, catalogURL); err != nil {
		return nil, fmt.Errorf("dingtalk: goto catalog: %w", err)
	}
	if err := a.driver.WaitFor(ctx, ".side-menu, nav"); err != nil {
		return nil, fmt.Errorf("dingtalk: wait for nav: %w", err)
	}

	var links []catalogLink
	script := `Array.from(document.querySelectorAll('.side-menu a[href], nav a[href]')).map(a => ({href: a.href, title: a.textContent.trim()}))`
	if err := a.driver.Evaluate(ctx, script, &links); err != nil {
		return nil, fmt.Errorf("dingtalk: collect links: %w", err)
	}

	seen := make(map[string]bool)
	var entries []adapter.DocEntry
	for _, link := range links {
		path := strings.TrimPrefix(link.Href, baseURL)
		path = strings.Trim(path, "/")
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		title := link.Title
		if title == "" {
			title = path
		}
		entries = append(entries, adapter.DocEntry{
			Path:       path,
			Title:      title,
			DocType:    "guide",
			SourceURL:  link.Href,
			PlatformID: link.Href,
		})
	}
	return entries, nil
}

// FetchContent navigates to the entry's rendered page and converts its
// main content area to Markdown.
func (a *Adapter) FetchContent(ctx context.Context, entry adapter.DocEntry) (adapter.DocContent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.limiter.Wait(ctx); err != nil {
		return adapter.DocContent{}, err
	}
	if err := a.driver.NewPage(ctx); err != nil {
		return adapter.DocContent{}, fmt.Errorf("dingtalk: new page: %w", err)
	}
	defer a.driver.Close()

	if err := a.driver.Goto(ctx, entry.PlatformID); err != nil {
		return adapter.DocContent{}, fmt.Errorf("dingtalk: goto %s: %w", entry.Path, err)
	}
	if err := a.driver.WaitFor(ctx, "article, .markdown-body, main"); err != nil {
		return adapter.DocContent{}, fmt.Errorf("dingtalk: wait for content %s: %w", entry.Path, err)
	}

	var html string
	script := `(document.querySelector('article, .markdown-body, main') || document.body).innerHTML`
	if err := a.driver.Evaluate(ctx, script, &html); err != nil {
		return adapter.DocContent{}, fmt.Errorf("dingtalk: read content %s: %w", entry.Path, err)
	}

	markdown, err := a.conv.Convert(html)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("dingtalk: convert markdown %s: %w", entry.Path, err)
	}

	apiPath := apiPathPattern.FindString(markdown)
	return adapter.DocContent{
		Markdown:   markdown,
		APIPath:    apiPath,
		ErrorCodes: adapter.ExtractErrorCodes(markdown),
	}, nil
}

// DetectUpdates delegates to FetchCatalog; the sync runner short-circuits
// unchanged content by hash comparison.
func (a *Adapter) DetectUpdates(ctx context.Context, since time.Time) ([]adapter.DocEntry, error) {
	return a.FetchCatalog(ctx)
}
