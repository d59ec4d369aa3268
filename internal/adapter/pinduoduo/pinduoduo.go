// Package pinduoduo implements the Pinduoduo (拼多多) open platform
// documentation adapter. Pinduoduo's authentication model doesn't suit an
// automated cookie refresh, so this adapter primarily serves a
// pre-captured JSON dump of the catalog and its documents, falling back
// to a cookie-authenticated live fetch when a dump path isn't configured.
package pinduoduo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/ratelimit"
	pkgmd "github.com/specfusion/specfusion/pkg/markdown"
)

const (
	sourceID   = "pinduoduo"
	sourceName = "拼多多开放平台"
	baseURL    = "https://open.pinduoduo.com"
)

// dumpEntry is one document in the offline JSON dump.
type dumpEntry struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	APIPath string `json:"api_path"`
	HTML    string `json:"html"`
}

// Adapter implements adapter.Adapter for Pinduoduo, either from a static
// dump file or a cookie-authenticated live session.
type Adapter struct {
	dumpPath string
	cookie   string
	client   *http.Client
	limiter  ratelimit.Limiter
	conv     *pkgmd.Converter
}

// New constructs the Pinduoduo adapter. dumpPath, if non-empty, takes
// priority over cookie-based live fetching.
func New(dumpPath, cookie string) *Adapter {
	return &Adapter{
		dumpPath: dumpPath,
		cookie:   cookie,
		client:   &http.Client{Timeout: 20 * time.Second},
		limiter:  ratelimit.NewFixedDelay(1500 * time.Millisecond),
		conv:     pkgmd.NewConverter(),
	}
}

func (a *Adapter) SourceID() string   { return sourceID }
func (a *Adapter) SourceName() string { return sourceName }

func (a *Adapter) loadDump() ([]dumpEntry, error) {
	data, err := os.ReadFile(a.dumpPath)
	if err != nil {
		return nil, fmt.Errorf("pinduoduo: read dump %s: %w", a.dumpPath, err)
	}
	var entries []dumpEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("pinduoduo: parse dump: %w", err)
	}
	return entries, nil
}

// FetchCatalog enumerates the dump file's entries, or (with no dump
// configured) the live catalog endpoint.
func (a *Adapter) FetchCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	if a.dumpPath != "" {
		entries, err := a.loadDump()
		if err != nil {
			return nil, err
		}
		out := make([]adapter.DocEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, adapter.DocEntry{
				Path:       e.Path,
				Title:      e.Title,
				APIPath:    e.APIPath,
				DocType:    "api_reference",
				PlatformID: e.Path,
			})
		}
		return out, nil
	}
	return a.fetchLiveCatalog(ctx)
}

type liveCatalogResponse struct {
	APIs []struct {
		Name  string `json:"type"`
		Title string `json:"title"`
	} `json:"api_list"`
}

func (a *Adapter) fetchLiveCatalog(ctx context.Context) ([]adapter.DocEntry, error) {
	body, err := a.liveGet(ctx, baseURL+"/api/router/catalog")
	if err != nil {
		return nil, fmt.Errorf("pinduoduo: fetch catalog: %w", err)
	}
	var parsed liveCatalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("pinduoduo: decode catalog: %w", err)
	}
	entries := make([]adapter.DocEntry, 0, len(parsed.APIs))
	for _, api := range parsed.APIs {
		entries = append(entries, adapter.DocEntry{
			Path:       api.Name,
			Title:      api.Title,
			APIPath:    api.Name,
			DocType:    "api_reference",
			PlatformID: api.Name,
		})
	}
	return entries, nil
}

// FetchContent converts the dump entry's HTML, or a freshly fetched live
// page, to Markdown.
func (a *Adapter) FetchContent(ctx context.Context, entry adapter.DocEntry) (adapter.DocContent, error) {
	var html string
	if a.dumpPath != "" {
		entries, err := a.loadDump()
		if err != nil {
			return adapter.DocContent{}, err
		}
		for _, e := range entries {
			if e.Path == entry.Path {
				html = e.HTML
				break
			}
		}
		if html == "" {
			return adapter.DocContent{}, fmt.Errorf("pinduoduo: entry %s not present in dump", entry.Path)
		}
	} else {
		body, err := a.liveGet(ctx, fmt.Sprintf("%s/api/router/doc?type=%s", baseURL, entry.PlatformID))
		if err != nil {
			return adapter.DocContent{}, fmt.Errorf("pinduoduo: fetch content %s: %w", entry.Path, err)
		}
		var parsed struct {
			HTML string `json:"content_html"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return adapter.DocContent{}, fmt.Errorf("pinduoduo: decode content %s: %w", entry.Path, err)
		}
		html = parsed.HTML
	}

	markdown, err := a.conv.Convert(html)
	if err != nil {
		return adapter.DocContent{}, fmt.Errorf("pinduoduo: convert markdown %s: %w", entry.Path, err)
	}

	return adapter.DocContent{
		Markdown:   markdown,
		APIPath:    entry.APIPath,
		ErrorCodes: adapter.ExtractErrorCodes(markdown),
	}, nil
}

func (a *Adapter) liveGet(ctx context.Context, url string) ([]byte, error) {
	if a.cookie == "" {
		return nil, fmt.Errorf("pinduoduo: no dump file and no session cookie configured")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", a.cookie)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// DetectUpdates delegates to FetchCatalog; the sync runner short-circuits
// unchanged content by hash comparison.
func (a *Adapter) DetectUpdates(ctx context.Context, since time.Time) ([]adapter.DocEntry, error) {
	return a.FetchCatalog(ctx)
}
