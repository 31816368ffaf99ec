package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

const (
	defaultTimeout = 60 * time.Second
	maxAttempts    = 3
	retryBackoff   = 500 * time.Millisecond
)

// OllamaEmbedder calls an Ollama-compatible /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllama creates an embedder against baseURL (e.g. http://localhost:11434).
func NewOllama(baseURL, model string, dimensions int) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

func (e *OllamaEmbedder) Dimensions() int { return e.dimensions }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed requests embeddings for all texts in one batch call, retrying
// transient failures. Vectors are L2-normalized before returning.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeEmbedding, err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, werrors.Wrap(werrors.ErrCodeEmbedding, ctx.Err())
			case <-time.After(retryBackoff * time.Duration(attempt-1)):
			}
		}

		vecs, err := e.doRequest(ctx, body)
		if err == nil {
			if len(vecs) != len(texts) {
				return nil, werrors.Newf(werrors.ErrCodeEmbedding,
					"embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vecs))
			}
			for i := range vecs {
				Normalize(vecs[i])
			}
			return vecs, nil
		}
		if !werrors.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, werrors.Wrap(werrors.ErrCodeEmbedding, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr))
}

func (e *OllamaEmbedder) doRequest(ctx context.Context, body []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeRetryableRemote, fmt.Errorf("embed request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		code := werrors.ErrCodePermanentRemote
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			code = werrors.ErrCodeRetryableRemote
		}
		return nil, werrors.Newf(code, "embed endpoint returned %d: %s", resp.StatusCode, msg)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeEmbedding, fmt.Errorf("decode embed response: %w", err))
	}
	return out.Embeddings, nil
}
