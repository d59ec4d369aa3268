// Package storage is the DocStore: a thin, typed facade over the embedded
// relational store. It owns schema bootstrap, write-ahead journaling,
// content hashing and ID derivation, and keeps the FTS index consistent via
// triggers declared in schema.go.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/specfusion/specfusion/internal/models"
	"github.com/specfusion/specfusion/internal/tokenizer"
)

// Store is the DocStore implementation backed by SQLite.
type Store struct {
	db  *sql.DB
	tok *tokenizer.Tokenizer
}

// Open opens or creates the database at dbPath, enables WAL and foreign-key
// enforcement, and applies the schema idempotently. tok is used to populate
// tokenized_title/tokenized_content at write time; it must be the same
// instance (and dictionary) the SearchEngine uses at query time.
func Open(dbPath string, tok *tokenizer.Tokenizer) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, tok: tok}, nil
}

// DB exposes the underlying *sql.DB for components (the SearchEngine) that
// need to run ad-hoc FTS/BM25 queries the typed facade doesn't cover.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Reindex rebuilds the FTS index and returns the document row count.
func (s *Store) Reindex(ctx context.Context) (int64, error) {
	return reindex(s.db)
}

// UpsertSource creates a source row on first reference or updates its name
// and base URL.
func (s *Store) UpsertSource(ctx context.Context, id, name, baseURL string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, base_url) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, base_url = excluded.base_url
	`, id, name, baseURL)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

// UpsertSourceConfig stores an opaque JSON config blob alongside a source,
// used to persist dynamically registered OpenAPI sources across process
// restarts.
func (s *Store) UpsertSourceConfig(ctx context.Context, id, name, baseURL, configJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, base_url, config) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, base_url = excluded.base_url, config = excluded.config
	`, id, name, baseURL, configJSON)
	if err != nil {
		return fmt.Errorf("upsert source config: %w", err)
	}
	return nil
}

// GetSourceConfigs returns the (id, config) pairs for every source with a
// non-empty config blob, used at startup to rebuild dynamically registered
// adapters.
func (s *Store) GetSourceConfigs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, config FROM sources WHERE config IS NOT NULL AND config != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("get source configs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, cfg string
		if err := rows.Scan(&id, &cfg); err != nil {
			return nil, err
		}
		out[id] = cfg
	}
	return out, rows.Err()
}

// GetSources returns every source, most-recently-synced first.
func (s *Store) GetSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(base_url, ''), doc_count, COALESCE(last_synced_at, '')
		FROM sources ORDER BY last_synced_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}
	defer rows.Close()

	var out []*models.Source
	for rows.Next() {
		var src models.Source
		var lastSynced string
		if err := rows.Scan(&src.ID, &src.Name, &src.BaseURL, &src.DocCount, &lastSynced); err != nil {
			return nil, err
		}
		if lastSynced != "" {
			src.LastSyncedAt, _ = parseTime(lastSynced)
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// GetSource returns one source by id, or nil if it has never been seen.
func (s *Store) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(base_url, ''), doc_count, COALESCE(last_synced_at, '')
		FROM sources WHERE id = ?
	`, id)
	var src models.Source
	var lastSynced string
	err := row.Scan(&src.ID, &src.Name, &src.BaseURL, &src.DocCount, &lastSynced)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	if lastSynced != "" {
		src.LastSyncedAt, _ = parseTime(lastSynced)
	}
	return &src, nil
}

// UpdateSourceSyncTime stamps a source's last_synced_at with now.
func (s *Store) UpdateSourceSyncTime(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET last_synced_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// recountDocCount recomputes and caches sources.doc_count for sourceID.
func recountDocCount(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}, sourceID string) error {
	_, err := execer.ExecContext(ctx, `
		UPDATE sources SET doc_count = (SELECT COUNT(*) FROM documents WHERE source_id = ?) WHERE id = ?
	`, sourceID, sourceID)
	return err
}

// UpsertDocument computes id and content_hash and inserts, updates, or
// leaves the row untouched . The caller must have already created
// the Source row (via UpsertSource/BulkUpsert).
func (s *Store) UpsertDocument(ctx context.Context, input *models.DocumentInput) (docID string, action models.UpsertAction, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	docID, action, err = upsertDocumentTx(ctx, tx, s.tok, input)
	if err != nil {
		return "", "", err
	}
	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("commit: %w", err)
	}
	return docID, action, nil
}

type execQueryer interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func upsertDocumentTx(ctx context.Context, tx execQueryer, tok *tokenizer.Tokenizer, input *models.DocumentInput) (string, models.UpsertAction, error) {
	id := DocumentID(input.SourceID, input.Path)
	hash := ContentHash(input.Content)
	depth := pathDepth(input.Path)
	tokenizedTitle := tok.Tokenize(input.Title)
	tokenizedContent := tok.Tokenize(input.Content)

	var existingHash string
	err := tx.QueryRowContext(ctx, `SELECT content_hash FROM documents WHERE id = ?`, id).Scan(&existingHash)
	switch {
	case err == sql.ErrNoRows:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (
				id, source_id, path, path_depth, title, api_path, dev_mode, doc_type,
				content, content_hash, prev_content_hash, source_url, metadata,
				tokenized_title, tokenized_content, last_updated, synced_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?)
		`, id, input.SourceID, input.Path, depth, input.Title, nullIfEmpty(input.APIPath),
			nullIfEmpty(string(input.DevMode)), normalizeDocType(input.DocType), input.Content, hash,
			nullIfEmpty(input.SourceURL), nullIfEmpty(input.Metadata), tokenizedTitle, tokenizedContent,
			nullIfZero(input.LastUpdated), time.Now().UTC())
		if err != nil {
			return "", "", fmt.Errorf("insert document: %w", err)
		}
		return id, models.ActionCreated, nil
	case err != nil:
		return "", "", fmt.Errorf("lookup document: %w", err)
	}

	if existingHash == hash {
		return id, models.ActionUnchanged, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET
			path_depth = ?, title = ?, api_path = ?, dev_mode = ?, doc_type = ?,
			content = ?, content_hash = ?, prev_content_hash = ?, source_url = ?,
			metadata = ?, tokenized_title = ?, tokenized_content = ?, last_updated = ?, synced_at = ?
		WHERE id = ?
	`, depth, input.Title, nullIfEmpty(input.APIPath), nullIfEmpty(string(input.DevMode)),
		normalizeDocType(input.DocType), input.Content, hash, existingHash, nullIfEmpty(input.SourceURL),
		nullIfEmpty(input.Metadata), tokenizedTitle, tokenizedContent, nullIfZero(input.LastUpdated),
		time.Now().UTC(), id)
	if err != nil {
		return "", "", fmt.Errorf("update document: %w", err)
	}
	return id, models.ActionUpdated, nil
}

// BulkUpsert applies UpsertDocument to every input in one transaction, then
// recomputes sources.doc_count for sourceID. All-or-nothing: if any row
// fails, the whole batch rolls back and no rows from this call are visible.
func (s *Store) BulkUpsert(ctx context.Context, sourceID string, inputs []*models.DocumentInput) (counts models.SyncCounts, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, input := range inputs {
		_, action, err := upsertDocumentTx(ctx, tx, s.tok, input)
		if err != nil {
			return models.SyncCounts{}, err
		}
		switch action {
		case models.ActionCreated:
			counts.Created++
		case models.ActionUpdated:
			counts.Updated++
		case models.ActionUnchanged:
			counts.Unchanged++
		}
	}
	if err := recountDocCount(ctx, tx, sourceID); err != nil {
		return models.SyncCounts{}, fmt.Errorf("recount doc_count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.SyncCounts{}, fmt.Errorf("commit: %w", err)
	}
	return counts, nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelect+` WHERE id = ?`, id)
	return scanDocument(row)
}

// GetDocumentsBySource returns every document for a source.
func (s *Store) GetDocumentsBySource(ctx context.Context, sourceID string) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, documentSelect+` WHERE source_id = ? ORDER BY path`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get documents by source: %w", err)
	}
	defer rows.Close()
	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document by id.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// UpsertErrorCodes replaces (source_id, code) rows in one transaction.
func (s *Store) UpsertErrorCodes(ctx context.Context, sourceID string, codes []*models.ErrorCode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO error_codes (source_id, code, message, description, doc_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, code) DO UPDATE SET
			message = excluded.message, description = excluded.description, doc_id = excluded.doc_id
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ec := range codes {
		if _, err := stmt.ExecContext(ctx, sourceID, ec.Code, ec.Message, ec.Description, nullIfEmpty(ec.DocID)); err != nil {
			return fmt.Errorf("upsert error code %s: %w", ec.Code, err)
		}
	}
	return tx.Commit()
}

// FindErrorCode looks up an error code by exact match, regardless of source.
func (s *Store) FindErrorCode(ctx context.Context, code string) (*models.ErrorCode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source_id, code, COALESCE(message, ''), COALESCE(description, ''), COALESCE(doc_id, '')
		FROM error_codes WHERE code = ? LIMIT 1
	`, code)
	var ec models.ErrorCode
	err := row.Scan(&ec.SourceID, &ec.Code, &ec.Message, &ec.Description, &ec.DocID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find error code: %w", err)
	}
	return &ec, nil
}

// CreateSyncLog opens a running sync_log row and returns its id.
func (s *Store) CreateSyncLog(ctx context.Context, sourceID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (source_id, started_at, status) VALUES (?, ?, ?)
	`, sourceID, time.Now().UTC(), models.SyncRunning)
	if err != nil {
		return 0, fmt.Errorf("create sync log: %w", err)
	}
	return res.LastInsertId()
}

// UpdateSyncLog closes a sync_log row with its final status and counts.
func (s *Store) UpdateSyncLog(ctx context.Context, id int64, status models.SyncStatus, counts models.SyncCounts, errText string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_log SET
			finished_at = ?, status = ?, created = ?, updated = ?, unchanged = ?, deleted = ?, errors = ?, error = ?
		WHERE id = ?
	`, time.Now().UTC(), status, counts.Created, counts.Updated, counts.Unchanged, counts.Deleted, counts.Errors,
		nullIfEmpty(errText), id)
	if err != nil {
		return fmt.Errorf("update sync log: %w", err)
	}
	return nil
}

// LogSearch appends one search_log row. Called for every search, including
// zero-result ones.
func (s *Store) LogSearch(ctx context.Context, query, sourceID string, count int, topScore float64, tookMS int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_log (query, source_id, count, top_score, took_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, query, nullIfEmpty(sourceID), count, topScore, tookMS, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("log search: %w", err)
	}
	return nil
}

const documentSelect = `
	SELECT id, source_id, path, path_depth, title, COALESCE(api_path, ''), COALESCE(dev_mode, ''),
		doc_type, content, content_hash, COALESCE(prev_content_hash, ''), COALESCE(source_url, ''),
		COALESCE(metadata, ''), tokenized_title, tokenized_content,
		COALESCE(last_updated, ''), synced_at
	FROM documents
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row *sql.Row) (*models.Document, error) {
	doc, err := scanDocumentRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

func scanDocumentRow(s scanner) (*models.Document, error) {
	return scanDocumentGeneric(s)
}

func scanDocumentRows(rows *sql.Rows) (*models.Document, error) {
	return scanDocumentGeneric(rows)
}

func scanDocumentGeneric(s scanner) (*models.Document, error) {
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

func pathDepth(path string) int {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	depth := 0
	for _, seg := range segments {
		if seg != "" {
			depth++
		}
	}
	if depth == 0 {
		depth = 1
	}
	return depth
}

func normalizeDocType(dt models.DocType) models.DocType {
	if models.ValidDocType(dt) {
		return dt
	}
	return models.DocTypeAPIReference
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time: %q", s)
}
