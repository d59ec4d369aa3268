package models

// QueryKind classifies a search query per the SearchEngine's classifier.
type QueryKind string

const (
	QueryKeyword  QueryKind = "keyword"
	QueryErrCode  QueryKind = "error_code"
	QueryAPIPath  QueryKind = "api_path"
)

// SearchQuery represents a search request with optional filters.
type SearchQuery struct {
	Query    string
	Source   string
	DevMode  DevMode
	Limit    int
}

// Normalize clamps Limit to [1, 20] (default 5) per the standard boundary rules.
func (q *SearchQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = 5
	}
	if q.Limit > 20 {
		q.Limit = 20
	}
}

// ClampLimit clamps v into [lo, hi], substituting def for v <= 0.
func ClampLimit(v, def, lo, hi int) int {
	if v <= 0 {
		v = def
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}
