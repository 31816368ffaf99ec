// Package store persists all WebSeek state in SQLite: documents, posting
// lists, collection statistics, chunk embeddings, autocomplete terms, crawl
// jobs, and search analytics. A single Store owns the connection; callers
// never see database/sql types.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	werrors "github.com/webseek/webseek/internal/errors"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists. An empty path opens an in-memory database.
func Open(path string) (*Store, error) {
	name := path
	if name == "" {
		name = ":memory:"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", name)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("open database: %w", err))
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between the API and the worker pool.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database. Further calls on the store fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return werrors.New(werrors.ErrCodePersistence, "store is closed")
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	clean_content TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	metadata      TEXT NOT NULL DEFAULT '{}',
	token_count   INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	indexed_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_indexed ON documents(indexed_at);
CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);

CREATE TABLE IF NOT EXISTS postings (
	term        TEXT NOT NULL,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	frequency   INTEGER NOT NULL,
	positions   TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (term, document_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_document ON postings(document_id);

CREATE TABLE IF NOT EXISTS collection_stats (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	total_documents INTEGER NOT NULL DEFAULT 0,
	avg_doc_length  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	chunk_text  TEXT NOT NULL,
	embedding   BLOB NOT NULL,
	PRIMARY KEY (document_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS autocomplete_terms (
	term      TEXT PRIMARY KEY,
	frequency INTEGER NOT NULL DEFAULT 1,
	source    TEXT NOT NULL DEFAULT 'query'
);
CREATE INDEX IF NOT EXISTS idx_autocomplete_freq ON autocomplete_terms(frequency DESC);

CREATE TABLE IF NOT EXISTS crawl_jobs (
	id               TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	config           TEXT NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL,
	pages_crawled    INTEGER NOT NULL DEFAULT 0,
	documents_added  INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL,
	started_at       TIMESTAMP,
	completed_at     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_crawl_jobs_created ON crawl_jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS query_logs (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	search_type  TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	latency_ms   INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS click_events (
	id          TEXT PRIMARY KEY,
	query_id    TEXT NOT NULL,
	document_id TEXT NOT NULL,
	position    INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
`

func (s *Store) createSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("create schema: %w", err))
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO collection_stats (id, total_documents, avg_doc_length) VALUES (1, 0, 0)`)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("seed stats: %w", err))
	}
	return nil
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("begin tx: %w", err))
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("commit: %w", err))
	}
	return nil
}
