// Package server exposes the HTTP API: search, autocomplete, RAG answers,
// crawl job management, documents, and index statistics.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webseek/webseek/internal/autocomplete"
	"github.com/webseek/webseek/internal/crawler"
	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/rag"
	"github.com/webseek/webseek/internal/search"
	"github.com/webseek/webseek/internal/store"
)

// Scheduler enqueues background work triggered by API calls.
type Scheduler interface {
	EnqueueCrawl(jobID string) error
	EnqueueIndexNew() error
}

// Server holds the handler dependencies.
type Server struct {
	engine    *search.Engine
	rag       *rag.Controller
	suggester *autocomplete.Service
	manager   *crawler.Manager
	scheduler Scheduler
	store     *store.Store
	logger    *slog.Logger
}

// New wires the HTTP layer. rag may be nil when no LLM is configured.
func New(engine *search.Engine, ragc *rag.Controller, suggester *autocomplete.Service,
	manager *crawler.Manager, scheduler Scheduler, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		rag:       ragc,
		suggester: suggester,
		manager:   manager,
		scheduler: scheduler,
		store:     st,
		logger:    logger,
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Post("/search/rag", s.handleRAG)
		r.Post("/search/click", s.handleClick)
		r.Get("/autocomplete", s.handleAutocomplete)

		r.Post("/crawl", s.handleCrawlSubmit)
		r.Get("/crawl/jobs", s.handleListJobs)
		r.Get("/crawl/jobs/{jobID}", s.handleGetJob)
		r.Post("/crawl/jobs/{jobID}/cancel", s.handleCancelJob)

		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{docID}", s.handleGetDocument)
		r.Post("/documents", s.handleCreateDocument)

		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response_encode_failed", slog.String("error", err.Error()))
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := werrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case werrors.ErrCodeBadConfig, werrors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case werrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case werrors.ErrCodeConflict:
		status = http.StatusConflict
	case werrors.ErrCodeRetryableRemote, werrors.ErrCodePermanentRemote:
		status = http.StatusBadGateway
	case werrors.ErrCodeEmbedding, werrors.ErrCodeLLMUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		s.logger.Error("request_failed", slog.String("code", code), slog.String("error", err.Error()))
	}
	s.writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: err.Error()}})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		s.writeError(w, werrors.Wrap(werrors.ErrCodeInvalidInput, err))
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountDocuments(r.Context(), ""); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetIndexStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
