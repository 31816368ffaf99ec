package crawler

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/store"
	"github.com/webseek/webseek/internal/textproc"
)

// minCleanContentLen drops boilerplate-only pages.
const minCleanContentLen = 50

// progressEvery is how often (in pages) job counters are persisted.
const progressEvery = 10

// Manager orchestrates crawl jobs: it validates submissions, drains a
// crawler's page stream, cleans and deduplicates pages, persists documents,
// and drives the job state machine.
type Manager struct {
	store    *store.Store
	registry *Registry
	logger   *slog.Logger
}

// NewManager creates the orchestrator.
func NewManager(st *store.Store, registry *Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: st, registry: registry, logger: logger}
}

// Registry exposes the crawler registry for source listing.
func (m *Manager) Registry() *Registry { return m.registry }

// Submit validates the config against the named crawler and persists a
// pending job. The crawl itself runs later on a worker.
func (m *Manager) Submit(ctx context.Context, source string, config json.RawMessage) (*store.CrawlJob, error) {
	c, err := m.registry.Get(source)
	if err != nil {
		return nil, err
	}
	if err := c.ValidateConfig(config); err != nil {
		return nil, err
	}
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	job := &store.CrawlJob{
		ID:     uuid.NewString(),
		Source: source,
		Config: string(config),
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("crawl_job_submitted", slog.String("job_id", job.ID),
		slog.String("source", source))
	return job, nil
}

// Execute runs one crawl job to a terminal state. It returns an error only
// for failures the worker should retry; cancellation and successful
// completion both return nil.
func (m *Manager) Execute(ctx context.Context, jobID string) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	c, err := m.registry.Get(job.Source)
	if err != nil {
		// A job persisted with an unknown source cannot ever run.
		_ = m.store.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	if err := m.store.MarkJobRunning(ctx, jobID); err != nil {
		if werrors.CodeOf(err) == werrors.ErrCodeConflict {
			// Already cancelled or picked up elsewhere; nothing to do.
			m.logger.Info("crawl_job_not_runnable", slog.String("job_id", jobID),
				slog.String("status", job.Status))
			return nil
		}
		return err
	}
	m.logger.Info("crawl_job_started", slog.String("job_id", jobID),
		slog.String("source", job.Source))

	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pages, errc := c.Crawl(crawlCtx, json.RawMessage(job.Config))

	found, added := 0, 0
	cancelled := false

	for page := range pages {
		// Cooperative cancellation at page boundaries; the in-flight fetch
		// is allowed to finish.
		if flagged, cerr := m.store.JobCancelRequested(ctx, jobID); cerr == nil && flagged {
			cancelled = true
			cancel()
			for range pages {
			}
			break
		}

		found++
		if found%progressEvery == 0 {
			if perr := m.store.UpdateJobProgress(ctx, jobID, found, added); perr != nil {
				m.logger.Warn("crawl_progress_update_failed", slog.String("job_id", jobID),
					slog.String("error", perr.Error()))
			}
		}

		ok, perr := m.persistPage(ctx, page)
		if perr != nil {
			cancel()
			for range pages {
			}
			<-errc
			return m.failJob(ctx, jobID, found, added, perr)
		}
		if ok {
			added++
		}
	}
	crawlErr := <-errc

	if uerr := m.store.UpdateJobProgress(ctx, jobID, found, added); uerr != nil {
		m.logger.Warn("crawl_progress_update_failed", slog.String("job_id", jobID),
			slog.String("error", uerr.Error()))
	}

	switch {
	case cancelled:
		if err := m.store.MarkJobCancelled(ctx, jobID); err != nil {
			return err
		}
		m.logger.Info("crawl_job_cancelled", slog.String("job_id", jobID),
			slog.Int("pages", found), slog.Int("documents", added))
		return nil
	case crawlErr != nil:
		return m.failJob(ctx, jobID, found, added, crawlErr)
	default:
		if err := m.store.MarkJobCompleted(ctx, jobID); err != nil {
			return err
		}
		m.logger.Info("crawl_job_completed", slog.String("job_id", jobID),
			slog.Int("pages", found), slog.Int("documents", added))
		return nil
	}
}

// persistPage cleans and stores one crawled page. Returns whether a document
// was added; duplicates and thin pages are skipped without error.
func (m *Manager) persistPage(ctx context.Context, page Page) (bool, error) {
	existing, err := m.store.GetDocumentByURL(ctx, page.URL)
	if err != nil {
		return false, err
	}
	if existing != nil {
		m.logger.Debug("crawl_duplicate_url", slog.String("url", page.URL))
		return false, nil
	}

	clean := textproc.HTMLToText(page.RawHTML)
	if len(strings.TrimSpace(clean)) < minCleanContentLen {
		m.logger.Debug("crawl_thin_page", slog.String("url", page.URL))
		return false, nil
	}

	doc := &store.Document{
		ID:           uuid.NewString(),
		URL:          page.URL,
		Title:        page.Title,
		Content:      page.RawHTML,
		CleanContent: clean,
		Source:       page.Source,
		Metadata:     page.Metadata,
		TokenCount:   len(strings.Fields(clean)),
	}
	if err := m.store.InsertDocument(ctx, doc); err != nil {
		// Two pages in one job can share a URL; the unique index wins.
		if werrors.CodeOf(err) == werrors.ErrCodeConflict {
			m.logger.Debug("crawl_duplicate_url", slog.String("url", page.URL))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) failJob(ctx context.Context, jobID string, found, added int, cause error) error {
	if uerr := m.store.UpdateJobProgress(ctx, jobID, found, added); uerr != nil {
		m.logger.Warn("crawl_progress_update_failed", slog.String("job_id", jobID),
			slog.String("error", uerr.Error()))
	}
	if merr := m.store.MarkJobFailed(ctx, jobID, cause.Error()); merr != nil {
		m.logger.Warn("crawl_job_fail_mark_failed", slog.String("job_id", jobID),
			slog.String("error", merr.Error()))
	}
	m.logger.Error("crawl_job_failed", slog.String("job_id", jobID),
		slog.String("error", cause.Error()))
	return cause
}
