package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/store"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := params.Get("q")
	if strings.TrimSpace(q) == "" {
		s.writeError(w, werrors.New(werrors.ErrCodeInvalidInput, "query parameter 'q' is required"))
		return
	}
	if len(q) > 500 {
		s.writeError(w, werrors.New(werrors.ErrCodeInvalidInput, "query exceeds 500 characters"))
		return
	}
	page := intParam(params.Get("page"), 1)
	size := intParam(params.Get("size"), 10)
	highlight := params.Get("highlight") == "true"

	resp, err := s.engine.Search(r.Context(), q, params.Get("type"), page, size)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !highlight {
		for i := range resp.Results {
			resp.Results[i].Snippet = stripMarks(resp.Results[i].Snippet)
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if strings.TrimSpace(prefix) == "" {
		s.writeError(w, werrors.New(werrors.ErrCodeInvalidInput, "query parameter 'prefix' is required"))
		return
	}
	limit := intParam(r.URL.Query().Get("limit"), 5)
	if limit < 1 || limit > 20 {
		limit = 5
	}

	suggestions, err := s.suggester.Suggest(r.Context(), prefix, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":      prefix,
		"suggestions": suggestions,
	})
}

type clickRequest struct {
	QueryID    string `json:"queryId"`
	DocumentID string `json:"documentId"`
	Position   int    `json:"position"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.QueryID == "" || req.DocumentID == "" || req.Position < 1 {
		s.writeError(w, werrors.New(werrors.ErrCodeInvalidInput,
			"queryId, documentId, and position (>= 1) are required"))
		return
	}
	err := s.store.InsertClickEvent(r.Context(), &store.ClickEvent{
		ID:         uuid.NewString(),
		QueryID:    req.QueryID,
		DocumentID: req.DocumentID,
		Position:   req.Position,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

var markReplacer = strings.NewReplacer("<mark>", "", "</mark>", "")

func stripMarks(snippet string) string {
	return markReplacer.Replace(snippet)
}
