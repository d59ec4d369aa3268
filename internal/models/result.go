package models

// SearchResult is a single scored, deduplicated search hit.
type SearchResult struct {
	Document    *Document
	Score       float64
	Snippet     string
	OtherModes  []DevMode // other dev_modes seen for the same (title, api_path) group
}

// SearchResponse is the full outcome of one SearchEngine.Search call, before
// Markdown rendering.
type SearchResponse struct {
	Query      string
	Kind       QueryKind
	Source     string
	Results    []*SearchResult
	Total      int // pre-truncation count, after dedup
	TookMS     int64
}
