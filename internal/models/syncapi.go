package models

import "time"

// DocumentPayload is the wire shape of one document inside the admin
// upsert/bulk-upsert request and response bodies.
type DocumentPayload struct {
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	APIPath     string    `json:"api_path,omitempty"`
	DevMode     DevMode   `json:"dev_mode,omitempty"`
	DocType     DocType   `json:"doc_type"`
	Content     string    `json:"content"`
	SourceURL   string    `json:"source_url,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// ToInput converts a wire payload into the DocStore's upsert input for
// sourceID.
func (p DocumentPayload) ToInput(sourceID string) DocumentInput {
	return DocumentInput{
		SourceID:    sourceID,
		Path:        p.Path,
		Title:       p.Title,
		APIPath:     p.APIPath,
		DevMode:     p.DevMode,
		DocType:     p.DocType,
		Content:     p.Content,
		SourceURL:   p.SourceURL,
		Metadata:    p.Metadata,
		LastUpdated: p.LastUpdated,
	}
}

// UpsertRequest is POST /api/admin/upsert's request body.
type UpsertRequest struct {
	Source     string          `json:"source"`
	SourceName string          `json:"source_name,omitempty"`
	Document   DocumentPayload `json:"document"`
}

// UpsertResponse is POST /api/admin/upsert's response body.
type UpsertResponse struct {
	DocID  string       `json:"doc_id"`
	Action UpsertAction `json:"action"`
}

// BulkUpsertRequest is POST /api/admin/bulk-upsert's request body.
type BulkUpsertRequest struct {
	Source     string            `json:"source"`
	SourceName string            `json:"source_name,omitempty"`
	Documents  []DocumentPayload `json:"documents"`
}

// BulkUpsertResponse is POST /api/admin/bulk-upsert's response body.
type BulkUpsertResponse struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// DeleteResponse is DELETE /api/admin/doc/{id}'s response body.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ReindexResponse is POST /api/admin/reindex's response body.
type ReindexResponse struct {
	Reindexed int64 `json:"reindexed"`
}

// HealthSource is one entry of GET /api/health's sources array.
type HealthSource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DocCount    int       `json:"doc_count"`
	LastSynced  time.Time `json:"last_synced"`
}

// HealthResponse is GET /api/health's response body.
type HealthResponse struct {
	Status    string         `json:"status"`
	Sources   []HealthSource `json:"sources"`
	TotalDocs int            `json:"total_docs"`
}
