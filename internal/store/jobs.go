package store

import (
	"context"
	"database/sql"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

// CreateJob persists a new crawl job in pending state.
func (s *Store) CreateJob(ctx context.Context, job *CrawlJob) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = JobPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_jobs (id, source, config, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Source, job.Config, job.Status, job.CreatedAt)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return nil
}

// GetJob fetches a crawl job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*CrawlJob, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, config, status, pages_crawled, documents_added, error,
		       cancel_requested, created_at, started_at, completed_at
		FROM crawl_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, werrors.NotFound("crawl job", id)
	}
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*CrawlJob, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, config, status, pages_crawled, documents_added, error,
		       cancel_requested, created_at, started_at, completed_at
		FROM crawl_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	var jobs []*CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkJobRunning transitions a pending job to running.
func (s *Store) MarkJobRunning(ctx context.Context, id string) error {
	return s.setJobStatus(ctx, id, JobRunning, "", JobPending)
}

// MarkJobCompleted transitions a running job to completed.
func (s *Store) MarkJobCompleted(ctx context.Context, id string) error {
	return s.setJobStatus(ctx, id, JobCompleted, "", JobRunning)
}

// MarkJobFailed records a terminal failure with its message.
func (s *Store) MarkJobFailed(ctx context.Context, id, errMsg string) error {
	return s.setJobStatus(ctx, id, JobFailed, errMsg, JobPending, JobRunning)
}

// MarkJobCancelled transitions a pending or running job to cancelled.
func (s *Store) MarkJobCancelled(ctx context.Context, id string) error {
	return s.setJobStatus(ctx, id, JobCancelled, "", JobPending, JobRunning)
}

func (s *Store) setJobStatus(ctx context.Context, id, status, errMsg string, from ...string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	query := `UPDATE crawl_jobs SET status = ?, error = ?`
	switch status {
	case JobRunning:
		query += `, started_at = ?`
	case JobCompleted, JobFailed, JobCancelled:
		query += `, completed_at = ?`
	}
	query += ` WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`

	args := []any{status, errMsg, time.Now().UTC(), id}
	args = append(args, toAny(from)...)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the job is missing or it is not in an eligible state.
		if _, gerr := s.GetJob(ctx, id); gerr != nil {
			return gerr
		}
		return werrors.Conflict("crawl job " + id + " is not in an eligible state")
	}
	return nil
}

// UpdateJobProgress records crawl progress counters.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, pages, docs int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_jobs SET pages_crawled = ?, documents_added = ? WHERE id = ?`,
		pages, docs, id)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return nil
}

// RequestJobCancel flags a job for cooperative cancellation. Pending jobs are
// cancelled immediately; running jobs stop at the next page boundary.
func (s *Store) RequestJobCancel(ctx context.Context, id string) (*CrawlJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case JobPending:
		if err := s.MarkJobCancelled(ctx, id); err != nil {
			return nil, err
		}
	case JobRunning:
		if _, err := s.db.ExecContext(ctx, `
			UPDATE crawl_jobs SET cancel_requested = 1 WHERE id = ?`, id); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
	default:
		return nil, werrors.Conflict("crawl job " + id + " already finished")
	}
	return s.GetJob(ctx, id)
}

// JobCancelRequested reports whether cancellation has been flagged.
func (s *Store) JobCancelRequested(ctx context.Context, id string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var flagged bool
	err := s.db.QueryRowContext(ctx, `
		SELECT cancel_requested FROM crawl_jobs WHERE id = ?`, id).Scan(&flagged)
	if err == sql.ErrNoRows {
		return false, werrors.NotFound("crawl job", id)
	}
	if err != nil {
		return false, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return flagged, nil
}

// CountJobsByStatus returns job counts per status.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM crawl_jobs GROUP BY status`)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func scanJob(r rowScanner) (*CrawlJob, error) {
	var job CrawlJob
	var started, completed sql.NullTime
	err := r.Scan(&job.ID, &job.Source, &job.Config, &job.Status, &job.PagesCrawled,
		&job.DocumentsAdded, &job.Error, &job.CancelRequested, &job.CreatedAt,
		&started, &completed)
	if err != nil {
		return nil, err
	}
	if started.Valid {
		t := started.Time
		job.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
