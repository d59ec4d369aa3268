// Package search implements the SearchEngine: query classification,
// FTS/BM25 retrieval with LIKE fallbacks, composite scoring, dev_mode
// deduplication, pagination, and Markdown rendering of results.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/storage"
	"github.com/specfusion/specfusion/internal/tokenizer"
)

const ftsCandidateCap = 200

// Engine runs searches against a Store.
type Engine struct {
	store *storage.Store
	tok   *tokenizer.Tokenizer
	log   *zap.Logger
	now   func() time.Time
}

// NewEngine constructs a SearchEngine over store, tokenizing queries with
// tok (which must share the same dictionary as the write-side tokenizer).
func NewEngine(store *storage.Store, tok *tokenizer.Tokenizer, log *zap.Logger) *Engine {
	return &Engine{store: store, tok: tok, log: log, now: time.Now}
}

// Search runs one query end-to-end: classify, retrieve, score, dedup,
// paginate, and log. It never returns an error for a well-formed but
// empty-result query; sub-path failures are degraded gracefully per the
// "Parse/format" error kind, except store-level failures which bubble up.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	q.Normalize()
	kind := Classify(q.Query)

	var (
		results []*models.SearchResult
		err     error
	)
	switch kind {
	case models.QueryErrCode:
		results, err = e.searchErrorCode(ctx, q)
	case models.QueryAPIPath:
		results, err = e.searchAPIPath(ctx, q)
	default:
		results, err = e.searchKeyword(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	deduped := dedupeByTitleAPIPath(results, q.DevMode)
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Score > deduped[j].Score })

	total := len(deduped)
	if len(deduped) > q.Limit {
		deduped = deduped[:q.Limit]
	}

	took := time.Since(start).Milliseconds()

	var topScore float64
	if len(deduped) > 0 {
		topScore = deduped[0].Score
	}
	if logErr := e.store.LogSearch(ctx, q.Query, q.Source, total, topScore, took); logErr != nil && e.log != nil {
		e.log.Warn("failed to write search_log", zap.Error(logErr))
	}

	return &models.SearchResponse{
		Query:   q.Query,
		Kind:    kind,
		Source:  q.Source,
		Results: deduped,
		Total:   total,
		TookMS:  took,
	}, nil
}

func (e *Engine) searchErrorCode(ctx context.Context, q *models.SearchQuery) ([]*models.SearchResult, error) {
	code := NormalizeErrorCode(q.Query)

	if ec, err := e.store.FindErrorCode(ctx, code); err != nil {
		return nil, fmt.Errorf("find error code: %w", err)
	} else if ec != nil && ec.DocID != "" {
		doc, err := e.store.GetDocument(ctx, ec.DocID)
		if err != nil {
			return nil, fmt.Errorf("get linked document: %w", err)
		}
		if doc != nil && sourceMatches(doc, q.Source) && devModeMatches(doc, q.DevMode) {
			return []*models.SearchResult{e.buildResult(doc, q, flatMatchScore)}, nil
		}
	}

	rows, err := e.queryLikeContent(ctx, "%"+code+"%", q)
	if err != nil {
		return nil, fmt.Errorf("error-code content scan: %w", err)
	}
	return e.resultsFromDocs(rows, q, flatMatchScore), nil
}

func (e *Engine) searchAPIPath(ctx context.Context, q *models.SearchQuery) ([]*models.SearchResult, error) {
	like := "%" + strings.TrimSpace(q.Query) + "%"
	query := `SELECT ` + documentColumns + ` FROM documents WHERE api_path LIKE ?`
	args := []interface{}{like}
	query, args = appendFilters(query, args, q)
	query += fmt.Sprintf(" LIMIT %d", q.Limit)

	docs, err := e.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("api-path scan: %w", err)
	}
	return e.resultsFromDocs(docs, q, flatMatchScore), nil
}

func (e *Engine) searchKeyword(ctx context.Context, q *models.SearchQuery) ([]*models.SearchResult, error) {
	tokens := e.tok.TokenizeQuery(q.Query)
	if len(tokens) == 0 {
		return nil, nil
	}

	matchExpr := strings.Join(tokens, " ")
	query := `
		SELECT documents.id, documents.source_id, documents.path, documents.path_depth, documents.title,
			COALESCE(documents.api_path, ''), COALESCE(documents.dev_mode, ''), documents.doc_type,
			documents.content, documents.content_hash, COALESCE(documents.prev_content_hash, ''),
			COALESCE(documents.source_url, ''), COALESCE(documents.metadata, ''), documents.tokenized_title,
			documents.tokenized_content, COALESCE(documents.last_updated, ''), documents.synced_at,
			bm25(documents_fts) AS fts_rank
		FROM documents_fts JOIN documents ON documents.doc_rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?`
	args := []interface{}{matchExpr}
	query, args = appendFilters(query, args, q)
	query += fmt.Sprintf(" LIMIT %d", ftsCandidateCap)

	type scored struct {
		doc  *models.Document
		bm25 float64
	}

	var scoredDocs []scored
	rows, err := e.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		// Malformed FTS match expression (rare token characters): fall back
		// to a per-token double-LIKE on content and title.
		return e.searchKeywordLikeFallback(ctx, tokens, q)
	}
	defer rows.Close()
	for rows.Next() {
		doc, bm25, err := scanDocumentWithRank(rows)
		if err != nil {
			return nil, err
		}
		scoredDocs = append(scoredDocs, scored{doc: doc, bm25: bm25})
	}
	if err := rows.Err(); err != nil {
		return e.searchKeywordLikeFallback(ctx, tokens, q)
	}

	now := e.now()
	out := make([]*models.SearchResult, 0, len(scoredDocs))
	for _, sd := range scoredDocs {
		sc := score(sd.doc, tokens, q.Query, sd.bm25, now)
		out = append(out, e.buildResult(sd.doc, q, sc))
	}
	return out, nil
}

func (e *Engine) searchKeywordLikeFallback(ctx context.Context, tokens []string, q *models.SearchQuery) ([]*models.SearchResult, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE `
	args := make([]interface{}, 0, len(tokens)*2)
	clauses := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		clauses = append(clauses, "(content LIKE ? OR title LIKE ?)")
		like := "%" + tok + "%"
		args = append(args, like, like)
	}
	query += "(" + strings.Join(clauses, " AND ") + ")"
	query, args = appendFilters(query, args, q)
	query += fmt.Sprintf(" LIMIT %d", ftsCandidateCap)

	docs, err := e.queryDocuments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("like fallback scan: %w", err)
	}
	now := e.now()
	out := make([]*models.SearchResult, 0, len(docs))
	for _, doc := range docs {
		out = append(out, e.buildResult(doc, q, score(doc, tokens, q.Query, 0, now)))
	}
	return out, nil
}

func (e *Engine) queryLikeContent(ctx context.Context, like string, q *models.SearchQuery) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE content LIKE ?`
	args := []interface{}{like}
	query, args = appendFilters(query, args, q)
	query += fmt.Sprintf(" LIMIT %d", q.Limit)
	return e.queryDocuments(ctx, query, args...)
}

func (e *Engine) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]*models.Document, error) {
	rows, err := e.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (e *Engine) resultsFromDocs(docs []*models.Document, q *models.SearchQuery, sc float64) []*models.SearchResult {
	out := make([]*models.SearchResult, 0, len(docs))
	for _, doc := range docs {
		out = append(out, e.buildResult(doc, q, sc))
	}
	return out
}

func (e *Engine) buildResult(doc *models.Document, q *models.SearchQuery, sc float64) *models.SearchResult {
	tokens := e.tok.TokenizeQuery(q.Query)
	return &models.SearchResult{
		Document: doc,
		Score:    sc,
		Snippet:  Snippet(doc.Content, q.Query, tokens),
	}
}

func sourceMatches(doc *models.Document, source string) bool {
	return source == "" || doc.SourceID == source
}

func devModeMatches(doc *models.Document, mode models.DevMode) bool {
	return mode == "" || doc.DevMode == mode
}

func appendFilters(query string, args []interface{}, q *models.SearchQuery) (string, []interface{}) {
	if q.Source != "" {
		query += " AND source_id = ?"
		args = append(args, q.Source)
	}
	if q.DevMode != "" {
		query += " AND dev_mode = ?"
		args = append(args, string(q.DevMode))
	}
	return query, args
}

// dedupeByTitleAPIPath groups candidates by (title, api_path), keeping the
// highest-scoring entry and attaching other seen dev_modes. When
// filterMode is non-empty, no dedup is applied.
func dedupeByTitleAPIPath(results []*models.SearchResult, filterMode models.DevMode) []*models.SearchResult {
	if filterMode != "" {
		return results
	}

	type group struct {
		best  *models.SearchResult
		modes map[models.DevMode]struct{}
	}
	order := make([]string, 0, len(results))
	groups := make(map[string]*group, len(results))

	for _, r := range results {
		key := r.Document.Title + "\x00" + r.Document.APIPath
		g, ok := groups[key]
		if !ok {
			g = &group{best: r, modes: map[models.DevMode]struct{}{}}
			groups[key] = g
			order = append(order, key)
		}
		if r.Document.DevMode != "" {
			g.modes[r.Document.DevMode] = struct{}{}
		}
		if r.Score > g.best.Score {
			g.best = r
		}
	}

	out := make([]*models.SearchResult, 0, len(order))
	for _, key := range order {
		g := groups[key]
		var others []models.DevMode
		for m := range g.modes {
			if m != g.best.Document.DevMode {
				others = append(others, m)
			}
		}
		sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
		g.best.OtherModes = others
		out = append(out, g.best)
	}
	return out
}

const documentColumns = `id, source_id, path, path_depth, title, COALESCE(api_path, ''), COALESCE(dev_mode, ''),
		doc_type, content, content_hash, COALESCE(prev_content_hash, ''), COALESCE(source_url, ''),
		COALESCE(metadata, ''), tokenized_title, tokenized_content,
		COALESCE(last_updated, ''), synced_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(s rowScanner) (*models.Document, error) {
	var doc models.Document
	var devMode, lastUpdatedStr, synced string
	err := s.Scan(
		&doc.ID, &doc.SourceID, &doc.Path, &doc.PathDepth, &doc.Title, &doc.APIPath, &devMode,
		&doc.DocType, &doc.Content, &doc.ContentHash, &doc.PrevContentHash, &doc.SourceURL,
		&doc.Metadata, &doc.TokenizedTitle, &doc.TokenizedContent, &lastUpdatedStr, &synced,
	)
	if err != nil {
		return nil, err
	}
	doc.DevMode = models.DevMode(devMode)
	if lastUpdatedStr != "" {
		doc.LastUpdated, _ = parseTime(lastUpdatedStr)
	}
	doc.SyncedAt, _ = parseTime(synced)
	return &doc, nil
}

func scanDocumentWithRank(rows *sql.Rows) (*models.Document, float64, error) {
	var doc models.Document
	var devMode, lastUpdatedStr, synced string
	var bm25Rank float64
	err := rows.Scan(
		&doc.ID, &doc.SourceID, &doc.Path, &doc.PathDepth, &doc.Title, &doc.APIPath, &devMode,
		&doc.DocType, &doc.Content, &doc.ContentHash, &doc.PrevContentHash, &doc.SourceURL,
		&doc.Metadata, &doc.TokenizedTitle, &doc.TokenizedContent, &lastUpdatedStr, &synced,
		&bm25Rank,
	)
	if err != nil {
		return nil, 0, err
	}
	doc.DevMode = models.DevMode(devMode)
	if lastUpdatedStr != "" {
		doc.LastUpdated, _ = parseTime(lastUpdatedStr)
	}
	doc.SyncedAt, _ = parseTime(synced)
	return &doc, bm25Rank, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time: %q", s)
}
