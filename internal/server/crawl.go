package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webseek/webseek/internal/store"
)

type crawlRequest struct {
	Source string          `json:"source"`
	Config json.RawMessage `json:"config"`
}

type jobSummary struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	Status         string     `json:"status"`
	PagesCrawled   int        `json:"pagesCrawled"`
	DocumentsAdded int        `json:"documentsAdded"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

type jobDetail struct {
	jobSummary
	Config          json.RawMessage `json:"config"`
	Error           string          `json:"error,omitempty"`
	CancelRequested bool            `json:"cancelRequested"`
}

func summarizeJob(job *store.CrawlJob) jobSummary {
	return jobSummary{
		ID:             job.ID,
		Source:         job.Source,
		Status:         job.Status,
		PagesCrawled:   job.PagesCrawled,
		DocumentsAdded: job.DocumentsAdded,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
}

func detailJob(job *store.CrawlJob) jobDetail {
	config := json.RawMessage(job.Config)
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	return jobDetail{
		jobSummary:      summarizeJob(job),
		Config:          config,
		Error:           job.Error,
		CancelRequested: job.CancelRequested,
	}
}

func (s *Server) handleCrawlSubmit(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	job, err := s.manager.Submit(r.Context(), req.Source, req.Config)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.scheduler.EnqueueCrawl(job.ID); err != nil {
		// The job row stays pending; surface the scheduling failure.
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":   job.ID,
		"source":  job.Source,
		"status":  job.Status,
		"message": "crawl job queued for " + job.Source,
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), intParam(r.URL.Query().Get("limit"), 50))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]jobSummary, len(jobs))
	for i, job := range jobs {
		out[i] = summarizeJob(job)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detailJob(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.RequestJobCancel(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("crawl_job_cancel_requested", slog.String("job_id", jobID),
		slog.String("status", job.Status))
	s.writeJSON(w, http.StatusOK, detailJob(job))
}
