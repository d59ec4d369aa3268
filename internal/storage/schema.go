package storage

import "database/sql"

// schema creates every table, the FTS5 virtual table, and the triggers that
// keep it in sync with documents. The binary must be built with
// `-tags sqlite_fts5` (or an equivalent cgo flag
// enabling FTS5 in mattn/go-sqlite3) for the virtual table statements below
// to succeed; see DESIGN.md.
const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	base_url       TEXT,
	doc_count      INTEGER NOT NULL DEFAULT 0,
	last_synced_at TIMESTAMP,
	config         TEXT
);

CREATE TABLE IF NOT EXISTS documents (
	doc_rowid         INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	source_id         TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	path              TEXT NOT NULL,
	path_depth        INTEGER NOT NULL,
	title             TEXT NOT NULL,
	api_path          TEXT,
	dev_mode          TEXT,
	doc_type          TEXT NOT NULL,
	content           TEXT NOT NULL,
	content_hash      TEXT NOT NULL,
	prev_content_hash TEXT,
	source_url        TEXT,
	metadata          TEXT,
	tokenized_title   TEXT NOT NULL DEFAULT '',
	tokenized_content TEXT NOT NULL DEFAULT '',
	last_updated      TIMESTAMP,
	synced_at         TIMESTAMP NOT NULL,
	UNIQUE (source_id, path)
);

CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_id);
CREATE INDEX IF NOT EXISTS idx_documents_api_path ON documents(api_path);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	tokenized_title,
	tokenized_content,
	content='documents',
	content_rowid='doc_rowid'
);

CREATE TRIGGER IF NOT EXISTS documents_fts_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, tokenized_title, tokenized_content)
	VALUES (new.doc_rowid, new.tokenized_title, new.tokenized_content);
END;

CREATE TRIGGER IF NOT EXISTS documents_fts_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, tokenized_title, tokenized_content)
	VALUES ('delete', old.doc_rowid, old.tokenized_title, old.tokenized_content);
END;

CREATE TRIGGER IF NOT EXISTS documents_fts_au AFTER UPDATE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, tokenized_title, tokenized_content)
	VALUES ('delete', old.doc_rowid, old.tokenized_title, old.tokenized_content);
	INSERT INTO documents_fts(rowid, tokenized_title, tokenized_content)
	VALUES (new.doc_rowid, new.tokenized_title, new.tokenized_content);
END;

CREATE TABLE IF NOT EXISTS error_codes (
	source_id   TEXT NOT NULL,
	code        TEXT NOT NULL,
	message     TEXT,
	description TEXT,
	doc_id      TEXT,
	PRIMARY KEY (source_id, code)
);

CREATE TABLE IF NOT EXISTS sync_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id   TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      TEXT NOT NULL,
	created     INTEGER NOT NULL DEFAULT 0,
	updated     INTEGER NOT NULL DEFAULT 0,
	unchanged   INTEGER NOT NULL DEFAULT 0,
	deleted     INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	error       TEXT
);

CREATE TABLE IF NOT EXISTS search_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	query      TEXT NOT NULL,
	source_id  TEXT,
	count      INTEGER NOT NULL,
	top_score  REAL,
	took_ms    INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// reindex rebuilds the FTS index from documents and returns the row count.
func reindex(db *sql.DB) (int64, error) {
	if _, err := db.Exec(`INSERT INTO documents_fts(documents_fts) VALUES('rebuild')`); err != nil {
		return 0, err
	}
	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
