package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

// InsertDocument stores a new document. A document with the same URL already
// present yields ErrCodeConflict.
func (s *Store) InsertDocument(ctx context.Context, doc *Document) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodeInvalidInput, fmt.Errorf("encode metadata: %w", err))
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, url, title, content, clean_content, source, metadata, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.URL, doc.Title, doc.Content, doc.CleanContent, doc.Source,
		string(meta), doc.TokenCount, doc.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return werrors.Conflict(fmt.Sprintf("document with url %s already exists", doc.URL))
		}
		return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("insert document: %w", err))
	}
	return nil
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, title, content, clean_content, source, metadata, token_count, created_at, indexed_at
		FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, werrors.NotFound("document", id)
	}
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return doc, nil
}

// GetDocumentByURL fetches a document by its canonical URL. Missing documents
// return (nil, nil): crawl dedup treats absence as the common case.
func (s *Store) GetDocumentByURL(ctx context.Context, url string) (*Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, title, content, clean_content, source, metadata, token_count, created_at, indexed_at
		FROM documents WHERE url = ?`, url)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return doc, nil
}

// GetDocuments fetches documents by id, keyed by id. Missing ids are simply
// absent from the result.
func (s *Store) GetDocuments(ctx context.Context, ids []string) (map[string]*Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[string]*Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
		SELECT id, url, title, content, clean_content, source, metadata, token_count, created_at, indexed_at
		FROM documents WHERE id IN (%s)`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, toAny(ids)...)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

// ListUnindexedIDs returns ids of documents that have never been indexed,
// oldest first.
func (s *Store) ListUnindexedIDs(ctx context.Context, limit int) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM documents WHERE indexed_at IS NULL ORDER BY created_at LIMIT ?`, limit)
}

// ListDocumentIDs returns all document ids, oldest first.
func (s *Store) ListDocumentIDs(ctx context.Context, limit int) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM documents ORDER BY created_at LIMIT ?`, limit)
}

func (s *Store) listIDs(ctx context.Context, query string, limit int) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDocuments returns one page of documents, newest first, optionally
// filtered by source.
func (s *Store) ListDocuments(ctx context.Context, source string, page, size int) ([]*Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	query := `SELECT id, url, title, content, clean_content, source, metadata, token_count, created_at, indexed_at
		FROM documents`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, size, (page-1)*size)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments counts documents, optionally filtered by source.
func (s *Store) CountDocuments(ctx context.Context, source string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	query := `SELECT COUNT(*) FROM documents`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return n, nil
}

// DeleteDocument removes a document; postings and chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return werrors.NotFound("document", id)
		}
		return refreshCollectionStats(ctx, tx)
	})
}

// DocumentLengths returns token counts for the given document ids.
func (s *Store) DocumentLengths(ctx context.Context, ids []string) (map[string]int, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`SELECT id, token_count FROM documents WHERE id IN (%s)`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, toAny(ids)...)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

// AllTitles streams (id, title) pairs for autocomplete population.
func (s *Store) AllTitles(ctx context.Context) (map[string]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM documents WHERE title != ''`)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		out[id] = title
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*Document, error) {
	var doc Document
	var meta string
	var indexedAt sql.NullTime
	err := r.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Content, &doc.CleanContent,
		&doc.Source, &meta, &doc.TokenCount, &doc.CreatedAt, &indexedAt)
	if err != nil {
		return nil, err
	}
	if indexedAt.Valid {
		t := indexedAt.Time
		doc.IndexedAt = &t
	}
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &doc.Metadata)
	}
	return &doc, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
