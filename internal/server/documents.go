package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/store"
	"github.com/webseek/webseek/internal/textproc"
)

type documentSummary struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Source    string     `json:"source"`
	WordCount int        `json:"wordCount"`
	CrawledAt time.Time  `json:"crawledAt"`
	IndexedAt *time.Time `json:"indexedAt"`
}

func summarizeDocument(doc *store.Document) documentSummary {
	return documentSummary{
		ID:        doc.ID,
		URL:       doc.URL,
		Title:     doc.Title,
		Source:    doc.Source,
		WordCount: doc.TokenCount,
		CrawledAt: doc.CreatedAt,
		IndexedAt: doc.IndexedAt,
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	page := intParam(params.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	size := intParam(params.Get("size"), 20)
	if size < 1 || size > 100 {
		size = 20
	}
	source := params.Get("source")

	ctx := r.Context()
	total, err := s.store.CountDocuments(ctx, source)
	if err != nil {
		s.writeError(w, err)
		return
	}
	docs, err := s.store.ListDocuments(ctx, source, page, size)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]documentSummary, len(docs))
	for i, doc := range docs {
		out[i] = summarizeDocument(doc)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"page":      page,
		"size":      size,
		"total":     total,
		"documents": out,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":           doc.ID,
		"url":          doc.URL,
		"title":        doc.Title,
		"cleanContent": doc.CleanContent,
		"source":       doc.Source,
		"metadata":     doc.Metadata,
		"wordCount":    doc.TokenCount,
		"crawledAt":    doc.CreatedAt,
		"indexedAt":    doc.IndexedAt,
	})
}

type createDocumentRequest struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, werrors.New(werrors.ErrCodeInvalidInput, "url is required"))
		return
	}

	clean := textproc.HTMLToText(req.Content)
	doc := &store.Document{
		ID:           uuid.NewString(),
		URL:          req.URL,
		Title:        req.Title,
		Content:      req.Content,
		CleanContent: clean,
		Source:       "custom",
		TokenCount:   len(strings.Fields(clean)),
	}
	if err := s.store.InsertDocument(r.Context(), doc); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.scheduler.EnqueueIndexNew(); err != nil {
		s.logger.Warn("index_enqueue_failed", slog.String("error", err.Error()))
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":      doc.ID,
		"url":     doc.URL,
		"title":   doc.Title,
		"source":  doc.Source,
		"message": "document created; it will be indexed in the background",
	})
}
