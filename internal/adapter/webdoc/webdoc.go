// Package webdoc implements a generic HTML documentation-site adapter: a
// catalog page is crawled for links matching a selector, and each linked
// page is fetched and converted to Markdown through the shared pipeline.
// It backs every source whose portal is a plain server-rendered doc site
// rather than one with a bespoke category/content API (its "simpler
// adapter profile" sources: Feishu, Douyin, Youzan, and the WeChat
// mini-program and shop platforms).
package webdoc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/ratelimit"
	pkgmd "github.com/specfusion/specfusion/pkg/markdown"
)

// Config describes one webdoc source.
type Config struct {
	SourceID     string
	SourceName   string
	BaseURL      string
	CatalogURL   string
	LinkSelector string         // goquery selector matching catalog <a> elements
	ContentSelector string      // goquery selector for the content region; "" means the whole <body>
	APIPathRegex *regexp.Regexp // optional; extracts an API path from converted markdown
	DocType      models.DocType // defaults to DocTypeGuide if unset
	Limiter      ratelimit.Limiter
}

// Adapter is a config-driven webdoc source.
type Adapter struct {
	cfg       Config
	client    *http.Client
	converter *pkgmd.Converter
}

// New constructs an Adapter from cfg. A nil Limiter defaults to a fixed
// 500ms-per-request pace.
func New(cfg Config) *Adapter {
	if cfg.DocType == "" {
		cfg.DocType = models.DocTypeGuide
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewFixedDelay(500 * time.Millisecond)
	}
	return &Adapter{
		cfg:       cfg,
		client:    &http.Client{Timeout: 30 * time.Second},
		converter: pkgmd.NewConverter(),
	}
}

func (a *Adapter) SourceID() string   { return a.cfg.SourceID }
func (a *Adapter) SourceName() string { return a.cfg.SourceName }

// FetchCatalog fetches the catalog page and emits one DocEntry per link
// matching LinkSelector; a link whose resolved path was already seen is kept
// with a numeric "-N" suffix on its path.
func (a *Adapter) FetchCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	if err := a.cfg.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	doc, err := a.fetchDocument(ctx, a.cfg.CatalogURL)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch catalog: %w", a.cfg.SourceID, err)
	}

	seen := make(map[string]int)
	var entries []adapter.DocEntry
	doc.Find(a.cfg.LinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		absURL, path := a.resolve(href)
		if path == "" {
			return
		}
		if seen[path] > 0 {
			path = fmt.Sprintf("%s-%d", path, seen[path]+1)
		}
		seen[path]++

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = path
		}
		entries = append(entries, adapter.DocEntry{
			Path:       path,
			Title:      title,
			DocType:    a.cfg.DocType,
			SourceURL:  absURL,
			PlatformID: absURL,
		})
	})
	return entries, nil
}

// FetchContent fetches entry.SourceURL and converts its content region to
// Markdown, extracting error codes and (if configured) an API path.
func (a *Adapter) FetchContent(ctx context.Context, entry adapter.DocEntry) (adapter.DocContent, error) {
	if err := a.cfg.Limiter.Wait(ctx); err != nil {
		return adapter.DocContent{}, err
	}

	doc, err := a.fetchDocument(ctx, entry.PlatformID)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("%s: fetch content %s: %w", a.cfg.SourceID, entry.Path, err)
	}

	selection := doc.Selection
	if a.cfg.ContentSelector != "" {
		if region := doc.Find(a.cfg.ContentSelector); region.Length() > 0 {
			selection = region
		}
	}
	html, err := selection.Html()
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("%s: serialize content %s: %w", a.cfg.SourceID, entry.Path, err)
	}

	markdown, err := a.converter.Convert(html)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("%s: convert markdown %s: %w", a.cfg.SourceID, entry.Path, err)
	}

	apiPath := ""
	if a.cfg.APIPathRegex != nil {
		apiPath = a.cfg.APIPathRegex.FindString(markdown)
	}

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

func (a *Adapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// resolve turns a possibly-relative href into an absolute URL and a path
// relative to BaseURL, suitable as a DocEntry.Path.
func (a *Adapter) resolve(href string) (absURL, path string) {
	base, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return "", ""
	}
	rel, err := url.Parse(href)
	if err != nil {
		return "", ""
	}
	resolved := base.ResolveReference(rel)
	if resolved.Host != base.Host {
		return "", ""
	}

	trimmed := strings.Trim(resolved.Path, "/")
	if trimmed == "" {
		trimmed = "index"
	}
	return resolved.String(), trimmed
}
