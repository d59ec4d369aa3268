package webdoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specfusion/specfusion/internal/ratelimit"
)

func catalogHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a class="doc-link" href="/guide/intro">Introduction</a>
			<a class="doc-link" href="/guide/setup">Setup</a>
			<a class="doc-link" href="/guide/intro">Introduction (duplicate)</a>
		</body></html>`))
	})
	mux.HandleFunc("/guide/intro", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article><h1>Intro</h1><p>Welcome to the docs.</p></article></body></html>`))
	})
	mux.HandleFunc("/guide/setup", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article><h1>Setup</h1><p>Install the SDK.</p></article></body></html>`))
	})
	return mux
}

func TestFetchCatalogSuffixesDuplicatePathsAndResolvesLinks(t *testing.T) {
	srv := httptest.NewServer(catalogHandler())
	defer srv.Close()

	a := New(Config{
		SourceID:     "testsrc",
		SourceName:   "Test Source",
		BaseURL:      srv.URL,
		CatalogURL:   srv.URL + "/docs",
		LinkSelector: "a.doc-link",
		Limiter:      ratelimit.NewFixedDelay(0),
	})

	entries, err := a.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (duplicate path gets a collision suffix), got %d: %+v", len(entries), entries)
	}
	if entries[0].Path != "guide/intro" {
		t.Errorf("path = %q, want guide/intro", entries[0].Path)
	}
}

func TestFetchContentConvertsContentSelector(t *testing.T) {
	srv := httptest.NewServer(catalogHandler())
	defer srv.Close()

	a := New(Config{
		SourceID:        "testsrc",
		SourceName:      "Test Source",
		BaseURL:         srv.URL,
		CatalogURL:      srv.URL + "/docs",
		LinkSelector:    "a.doc-link",
		ContentSelector: "article",
		Limiter:         ratelimit.NewFixedDelay(0),
	})

	entries, err := a.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}

	content, err := a.FetchContent(context.Background(), entries[0])
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if content.Markdown == "" {
		t.Error("expected non-empty markdown")
	}
}
