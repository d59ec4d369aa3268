// Package adapter defines the source-adapter contract: every
// ingestible platform implements Adapter and is registered in a
// SourceRegistry that the SyncRunner drives.
package adapter

import (
	"context"
	"time"

	"github.com/specfusion/specfusion/internal/models"
)

// DocEntry is one catalog entry: enough to decide whether content needs
// fetching, but not the content itself.
type DocEntry struct {
	Path        string
	Title       string
	APIPath     string
	DevMode     models.DevMode
	DocType     models.DocType
	SourceURL   string
	LastUpdated time.Time
	PlatformID  string // the source's own stable id, needed to fetch content
}

// DocContent is the normalized result of fetching one entry's content.
type DocContent struct {
	Markdown    string
	APIPath     string
	ErrorCodes  []models.ErrorCode
	Metadata    string // opaque JSON string
}

// Adapter is the contract every ingestible platform implements.
type Adapter interface {
	// SourceID is the stable identifier stored in documents.source_id.
	SourceID() string
	// SourceName is the human-readable label shown in /sources.
	SourceName() string
	// FetchCatalog enumerates every document this source currently exposes.
	FetchCatalog(ctx context.Context) ([]DocEntry, error)
	// FetchContent returns normalized content for one catalog entry.
	FetchContent(ctx context.Context, entry DocEntry) (DocContent, error)
	// DetectUpdates returns entries believed to have changed since since.
	// The default acceptable implementation delegates to FetchCatalog; the
	// SyncRunner short-circuits unchanged content by hash comparison.
	DetectUpdates(ctx context.Context, since time.Time) ([]DocEntry, error)
}

// SourceRegistry holds every registered Adapter, plus a factory for
// dynamically-created sources (OpenAPI sources added via the sync CLI).
type SourceRegistry struct {
	adapters map[string]Adapter
}

// NewSourceRegistry returns an empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces an adapter under its own SourceID.
func (r *SourceRegistry) Register(a Adapter) {
	r.adapters[a.SourceID()] = a
}

// Get returns the adapter for id, or nil if unregistered.
func (r *SourceRegistry) Get(id string) Adapter {
	return r.adapters[id]
}

// All returns every registered adapter.
func (r *SourceRegistry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// IDs returns every registered source id.
func (r *SourceRegistry) IDs() []string {
	out := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		out = append(out, id)
	}
	return out
}
