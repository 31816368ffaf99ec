package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/rag"
)

const ragTopK = 5

type ragRequest struct {
	Query     string `json:"query"`
	Recursive bool   `json:"recursive"`
	MaxDepth  int    `json:"maxDepth"`
	Stream    bool   `json:"stream"`
}

type ragResponse struct {
	Query      string `json:"query"`
	SearchType string `json:"searchType"`
	LatencyMS  int64  `json:"latencyMs"`
	*rag.Answer
}

type recursiveRAGResponse struct {
	Query      string `json:"query"`
	SearchType string `json:"searchType"`
	LatencyMS  int64  `json:"latencyMs"`
	*rag.RecursiveAnswer
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		s.writeError(w, werrors.New(werrors.ErrCodeLLMUnavailable, "no LLM backend configured"))
		return
	}
	var req ragRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, werrors.New(werrors.ErrCodeInvalidInput, "query is required"))
		return
	}
	if req.MaxDepth <= 0 {
		req.MaxDepth = 2
	}
	if req.MaxDepth > 3 {
		req.MaxDepth = 3
	}

	start := time.Now()
	ctx := r.Context()

	switch {
	case req.Recursive:
		answer, err := s.rag.AnswerRecursive(ctx, req.Query, req.MaxDepth, ragTopK)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, recursiveRAGResponse{
			Query:           req.Query,
			SearchType:      "recursive_rag",
			LatencyMS:       time.Since(start).Milliseconds(),
			RecursiveAnswer: answer,
		})
	case req.Stream:
		s.streamRAG(w, r, req.Query)
	default:
		answer, err := s.rag.Answer(ctx, req.Query, ragTopK)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, ragResponse{
			Query:      req.Query,
			SearchType: "rag",
			LatencyMS:  time.Since(start).Milliseconds(),
			Answer:     answer,
		})
	}
}

// streamRAG writes answer tokens as a plain-text chunked response. Errors
// after the first byte can only be logged; the status line is already gone.
func (s *Server) streamRAG(w http.ResponseWriter, r *http.Request, query string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, werrors.New(werrors.ErrCodeInternal, "streaming unsupported by connection"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Search-Type", "rag_stream")
	w.WriteHeader(http.StatusOK)

	_, err := s.rag.AnswerStream(r.Context(), query, ragTopK, func(chunk string) error {
		if _, werr := w.Write([]byte(chunk)); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		s.logger.Warn("rag_stream_failed", slog.String("error", err.Error()))
	}
}
