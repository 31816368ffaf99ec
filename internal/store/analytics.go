package store

import (
	"context"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

// InsertQueryLog records a served search. Analytics failures must never fail
// a search, so callers log and drop the returned error.
func (s *Store) InsertQueryLog(ctx context.Context, q *QueryLog) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_logs (id, query, search_type, result_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.Query, q.SearchType, q.ResultCount, q.LatencyMS, q.CreatedAt)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return nil
}

// InsertClickEvent records a result click.
func (s *Store) InsertClickEvent(ctx context.Context, e *ClickEvent) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO click_events (id, query_id, document_id, position, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.QueryID, e.DocumentID, e.Position, e.CreatedAt)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return nil
}

// GetIndexStats aggregates corpus and job state for the stats endpoint.
func (s *Store) GetIndexStats(ctx context.Context) (*IndexStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var st IndexStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(indexed_at) FROM documents`).
		Scan(&st.TotalDocuments, &st.IndexedDocuments)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	if st.TotalTerms, err = s.TermCount(ctx); err != nil {
		return nil, err
	}
	if st.TotalChunks, err = s.ChunkCount(ctx); err != nil {
		return nil, err
	}
	cs, err := s.GetCollectionStats(ctx)
	if err != nil {
		return nil, err
	}
	st.AvgDocLength = cs.AvgDocLength
	byStatus, err := s.CountJobsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st.PendingJobs = byStatus[JobPending]
	st.RunningJobs = byStatus[JobRunning]
	return &st, nil
}
