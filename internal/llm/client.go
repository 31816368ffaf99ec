// Package llm provides a chat client for Ollama-compatible model servers.
// Answer generation degrades gracefully when the model server is down, so
// every error carries ErrCodeLLMUnavailable for callers to branch on.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	werrors "github.com/webseek/webseek/internal/errors"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the interface RAG generation depends on.
type Client interface {
	// Chat sends the conversation and returns the full assistant reply.
	Chat(ctx context.Context, messages []Message) (string, error)
	// ChatStream sends the conversation and invokes onChunk for each piece
	// of the assistant reply as it arrives.
	ChatStream(ctx context.Context, messages []Message, onChunk func(string) error) error
}

// HTTPClient talks to an Ollama-compatible /api/chat endpoint.
type HTTPClient struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// New creates a chat client for baseURL using the given model.
func New(baseURL, model string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func (c *HTTPClient) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.send(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", werrors.Wrap(werrors.ErrCodeLLMUnavailable, fmt.Errorf("decode chat response: %w", err))
	}
	return strings.TrimSpace(out.Message.Content), nil
}

func (c *HTTPClient) ChatStream(ctx context.Context, messages []Message, onChunk func(string) error) error {
	resp, err := c.send(ctx, messages, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// The stream is NDJSON: one chatResponse object per line, done=true last.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return werrors.Wrap(werrors.ErrCodeLLMUnavailable, fmt.Errorf("decode stream chunk: %w", err))
		}
		if chunk.Message.Content != "" {
			if err := onChunk(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return werrors.Wrap(werrors.ErrCodeLLMUnavailable, err)
	}
	return nil
}

func (c *HTTPClient) send(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeLLMUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeLLMUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeLLMUnavailable, fmt.Errorf("chat request: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, werrors.Newf(werrors.ErrCodeLLMUnavailable, "chat endpoint returned %d: %s", resp.StatusCode, msg)
	}
	return resp, nil
}
