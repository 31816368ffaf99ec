package store

import (
	"context"

	werrors "github.com/webseek/webseek/internal/errors"
)

// RecordQueryTerm bumps a term's frequency, inserting it at 1 if new.
func (s *Store) RecordQueryTerm(ctx context.Context, term string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO autocomplete_terms (term, frequency, source) VALUES (?, 1, 'query')
		ON CONFLICT(term) DO UPDATE SET frequency = frequency + 1`, term)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return nil
}

// InsertTitleTerm seeds a term from a document title at base frequency 5.
// Terms already present keep their learned frequency.
func (s *Store) InsertTitleTerm(ctx context.Context, term string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO autocomplete_terms (term, frequency, source) VALUES (?, 5, 'title')
		ON CONFLICT(term) DO NOTHING`, term)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return nil
}

// TopTerms returns the most frequent terms, capped at limit.
func (s *Store) TopTerms(ctx context.Context, limit int) ([]TermFrequency, error) {
	return s.queryTerms(ctx, `
		SELECT term, frequency FROM autocomplete_terms
		ORDER BY frequency DESC, term LIMIT ?`, limit)
}

// TermsWithPrefix returns the most frequent terms starting with prefix.
// Fallback path while the in-memory trie is rebuilding.
func (s *Store) TermsWithPrefix(ctx context.Context, prefix string, limit int) ([]TermFrequency, error) {
	return s.queryTerms(ctx, `
		SELECT term, frequency FROM autocomplete_terms
		WHERE term LIKE ? || '%'
		ORDER BY frequency DESC, term LIMIT ?`, prefix, limit)
}

func (s *Store) queryTerms(ctx context.Context, query string, args ...any) ([]TermFrequency, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	var out []TermFrequency
	for rows.Next() {
		var tf TermFrequency
		if err := rows.Scan(&tf.Term, &tf.Frequency); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		out = append(out, tf)
	}
	return out, rows.Err()
}
