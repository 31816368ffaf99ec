package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

// ReplacePostings atomically replaces a document's posting rows, stamps the
// document as indexed with its token count, and refreshes the collection
// statistics. Everything happens in one transaction so readers never observe
// a half-indexed document.
func (s *Store) ReplacePostings(ctx context.Context, docID string, terms map[string][]int, tokenCount int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE document_id = ?`, docID); err != nil {
			return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("clear postings: %w", err))
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO postings (term, document_id, frequency, positions) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		defer stmt.Close()

		for term, positions := range terms {
			pos, err := json.Marshal(positions)
			if err != nil {
				return werrors.Wrap(werrors.ErrCodePersistence, err)
			}
			if _, err := stmt.ExecContext(ctx, term, docID, len(positions), string(pos)); err != nil {
				return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("insert posting %q: %w", term, err))
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET token_count = ?, indexed_at = ? WHERE id = ?`,
			tokenCount, time.Now().UTC(), docID)
		if err != nil {
			return werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return werrors.NotFound("document", docID)
		}

		return refreshCollectionStats(ctx, tx)
	})
}

// refreshCollectionStats recomputes N and avgdl from indexed documents.
func refreshCollectionStats(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO collection_stats (id, total_documents, avg_doc_length)
		SELECT 1, COUNT(*), COALESCE(AVG(token_count), 0)
		FROM documents WHERE indexed_at IS NOT NULL`)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("refresh stats: %w", err))
	}
	return nil
}

// PostingsForTerm returns the posting list for a single term.
func (s *Store) PostingsForTerm(ctx context.Context, term string) ([]Posting, error) {
	m, err := s.PostingsForTerms(ctx, []string{term})
	if err != nil {
		return nil, err
	}
	return m[term], nil
}

// PostingsForTerms returns posting lists for the given terms, keyed by term.
// Terms with no postings are absent from the result; document frequency for a
// term is the length of its slice.
func (s *Store) PostingsForTerms(ctx context.Context, terms []string) (map[string][]Posting, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[string][]Posting, len(terms))
	if len(terms) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
		SELECT term, document_id, frequency, positions
		FROM postings WHERE term IN (%s)`, placeholders(len(terms)))
	rows, err := s.db.QueryContext(ctx, query, toAny(terms)...)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		var term, posJSON string
		var p Posting
		if err := rows.Scan(&term, &p.DocumentID, &p.Frequency, &posJSON); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		_ = json.Unmarshal([]byte(posJSON), &p.Positions)
		out[term] = append(out[term], p)
	}
	return out, rows.Err()
}

// GetCollectionStats returns the current corpus statistics.
func (s *Store) GetCollectionStats(ctx context.Context) (CollectionStats, error) {
	var cs CollectionStats
	if err := s.checkOpen(); err != nil {
		return cs, err
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT total_documents, avg_doc_length FROM collection_stats WHERE id = 1`).
		Scan(&cs.TotalDocuments, &cs.AvgDocLength)
	if err != nil {
		return cs, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return cs, nil
}

// TermCount returns the number of distinct indexed terms.
func (s *Store) TermCount(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT term) FROM postings`).Scan(&n)
	if err != nil {
		return 0, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return n, nil
}
