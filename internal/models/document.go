// Package models defines the core data structures shared between the store,
// search engine, summarizer, and adapter framework.
package models

import "time"

// DocType categorizes a Document. Unknown values must not round-trip;
// callers should fall back to DocTypeAPIReference.
type DocType string

const (
	DocTypeAPIReference DocType = "api_reference"
	DocTypeGuide        DocType = "guide"
	DocTypeErrorCode    DocType = "error_code"
	DocTypeEvent        DocType = "event"
	DocTypeCardTemplate DocType = "card_template"
	DocTypeChangelog    DocType = "changelog"
)

// ValidDocType reports whether dt is one of the six enumerated doc types.
func ValidDocType(dt DocType) bool {
	switch dt {
	case DocTypeAPIReference, DocTypeGuide, DocTypeErrorCode, DocTypeEvent, DocTypeCardTemplate, DocTypeChangelog:
		return true
	}
	return false
}

// DevMode is a Wecom-specific axis distinguishing self-built, third-party
// (ISV), and service-provider-developed variants of the same nominal API.
// It is only ever set when Document.SourceID == "wecom".
type DevMode string

const (
	DevModeInternal        DevMode = "internal"
	DevModeThirdParty      DevMode = "third_party"
	DevModeServiceProvider DevMode = "service_provider"
)

// Source is an ingested platform (e.g. "wecom", "feishu", an OpenAPI source).
type Source struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	BaseURL      string    `json:"base_url,omitempty" db:"base_url"`
	DocCount     int       `json:"doc_count" db:"doc_count"`
	LastSyncedAt time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	Config       string    `json:"config,omitempty" db:"config"` // opaque JSON blob
}

// Document is one retrieved, normalized article.
type Document struct {
	ID               string    `json:"id" db:"id"`
	SourceID         string    `json:"source_id" db:"source_id"`
	Path             string    `json:"path" db:"path"`
	PathDepth        int       `json:"path_depth" db:"path_depth"`
	Title            string    `json:"title" db:"title"`
	APIPath          string    `json:"api_path,omitempty" db:"api_path"`
	DevMode          DevMode   `json:"dev_mode,omitempty" db:"dev_mode"`
	DocType          DocType   `json:"doc_type" db:"doc_type"`
	Content          string    `json:"content" db:"content"`
	ContentHash      string    `json:"content_hash" db:"content_hash"`
	PrevContentHash  string    `json:"prev_content_hash,omitempty" db:"prev_content_hash"`
	SourceURL        string    `json:"source_url,omitempty" db:"source_url"`
	Metadata         string    `json:"metadata,omitempty" db:"metadata"` // JSON string
	TokenizedTitle   string    `json:"-" db:"tokenized_title"`
	TokenizedContent string    `json:"-" db:"tokenized_content"`
	LastUpdated      time.Time `json:"last_updated,omitempty" db:"last_updated"`
	SyncedAt         time.Time `json:"synced_at" db:"synced_at"`
}

// DocumentInput is the upsert input for a single document: everything the
// adapter/bulk-upsert boundary supplies before hashing, ID derivation, and
// tokenization are applied.
type DocumentInput struct {
	SourceID    string
	Path        string
	Title       string
	APIPath     string
	DevMode     DevMode
	DocType     DocType
	Content     string
	SourceURL   string
	Metadata    string
	LastUpdated time.Time
}

// UpsertAction describes the outcome of DocStore.UpsertDocument.
type UpsertAction string

const (
	ActionCreated   UpsertAction = "created"
	ActionUpdated   UpsertAction = "updated"
	ActionUnchanged UpsertAction = "unchanged"
)

// ErrorCode is a per-source error-code entry, uniquely identified by
// (SourceID, Code).
type ErrorCode struct {
	SourceID    string `json:"source_id" db:"source_id"`
	Code        string `json:"code" db:"code"`
	Message     string `json:"message" db:"message"`
	Description string `json:"description" db:"description"`
	DocID       string `json:"doc_id,omitempty" db:"doc_id"`
}

// SyncStatus is the lifecycle state of a SyncLog row.
type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// SyncLog is a per-run record of one source's sync.
type SyncLog struct {
	ID         int64      `json:"id" db:"id"`
	SourceID   string     `json:"source_id" db:"source_id"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty" db:"finished_at"`
	Status     SyncStatus `json:"status" db:"status"`
	Created    int        `json:"created" db:"created"`
	Updated    int        `json:"updated" db:"updated"`
	Unchanged  int        `json:"unchanged" db:"unchanged"`
	Deleted    int        `json:"deleted" db:"deleted"`
	Errors     int        `json:"errors" db:"errors"`
	ErrorText  string     `json:"error,omitempty" db:"error"`
}

// SyncCounts accumulates per-run outcome counts during a sync.
type SyncCounts struct {
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
	Errors    int
}

// SearchLog is a per-query record, written for every search including
// zero-result ones.
type SearchLog struct {
	ID        int64     `json:"id" db:"id"`
	Query     string    `json:"query" db:"query"`
	SourceID  string    `json:"source_id,omitempty" db:"source_id"`
	Count     int       `json:"count" db:"count"`
	TopScore  float64   `json:"top_score,omitempty" db:"top_score"`
	TookMS    int64     `json:"took_ms" db:"took_ms"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
