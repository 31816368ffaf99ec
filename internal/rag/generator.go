package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/webseek/webseek/internal/llm"
)

const systemPrompt = `You are a knowledgeable search assistant. Your job is to answer user questions
based strictly on the provided context. Follow these rules:

1. Only use information from the provided context to answer
2. If the context doesn't contain enough information, say so clearly
3. Cite your sources by referencing the document titles and URLs
4. Be concise but thorough
5. If multiple sources agree, synthesize them into a coherent answer
6. If sources conflict, mention both perspectives`

const answerTemplate = `Context from search results:

%s

---

User Question: %s

Provide a comprehensive answer based on the context above. Cite sources using [Title](URL) format.`

const followUpTemplate = `Based on the initial answer and context, generate 2-3 follow-up search queries
that would help provide a more complete answer to the original question.

Original question: %s
Current answer: %s

Return ONLY the follow-up queries, one per line. No numbering, no explanations.`

const noContextAnswer = "I couldn't find any relevant information to answer your question."

// maxFollowUps caps how many follow-up queries one refinement round may add.
const maxFollowUps = 3

// Source is a citation in the answer payload.
type Source struct {
	DocumentID string  `json:"documentId"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Source     string  `json:"source"`
	Relevance  float64 `json:"relevanceScore"`
}

// Answer is one generated answer with its citations.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Model   string   `json:"model"`
}

// Generator produces answers from retrieved context.
type Generator struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

// NewGenerator wires a generator over the chat client. model is only echoed
// in responses.
func NewGenerator(client llm.Client, model string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, model: model, logger: logger}
}

// Generate produces an answer from the contexts. When the model backend is
// unreachable it degrades to a deterministic digest of the retrieved sources
// instead of failing the request.
func (g *Generator) Generate(ctx context.Context, query string, contexts []Context) (*Answer, error) {
	if len(contexts) == 0 {
		return &Answer{Answer: noContextAnswer, Sources: []Source{}, Model: g.model}, nil
	}

	prompt := fmt.Sprintf(answerTemplate, buildContextBlock(contexts), query)
	answer, err := g.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		g.logger.Warn("llm_generation_failed", slog.String("error", err.Error()))
		answer = fallbackAnswer(query, contexts)
	}

	return &Answer{Answer: answer, Sources: buildSourceList(contexts), Model: g.model}, nil
}

// GenerateStream streams answer text through onChunk. The degraded path
// emits the fallback digest as a single chunk.
func (g *Generator) GenerateStream(ctx context.Context, query string, contexts []Context, onChunk func(string) error) error {
	if len(contexts) == 0 {
		return onChunk(noContextAnswer)
	}

	prompt := fmt.Sprintf(answerTemplate, buildContextBlock(contexts), query)
	err := g.client.ChatStream(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, onChunk)
	if err != nil {
		g.logger.Warn("llm_streaming_failed", slog.String("error", err.Error()))
		return onChunk(fallbackAnswer(query, contexts))
	}
	return nil
}

// FollowUpQueries asks the model for refinement queries. Failure means no
// refinement, never a failed request.
func (g *Generator) FollowUpQueries(ctx context.Context, query, currentAnswer string) []string {
	prompt := fmt.Sprintf(followUpTemplate, query, currentAnswer)
	raw, err := g.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		g.logger.Warn("follow_up_generation_failed", slog.String("error", err.Error()))
		return nil
	}

	var queries []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			queries = append(queries, line)
		}
		if len(queries) == maxFollowUps {
			break
		}
	}
	return queries
}

func buildContextBlock(contexts []Context) string {
	blocks := make([]string, len(contexts))
	for i, c := range contexts {
		blocks[i] = fmt.Sprintf("[Source %d] %s\nURL: %s\nContent: %s", i+1, c.Title, c.URL, c.ChunkText)
	}
	return strings.Join(blocks, "\n\n")
}

func buildSourceList(contexts []Context) []Source {
	out := make([]Source, len(contexts))
	for i, c := range contexts {
		out[i] = Source{
			DocumentID: c.DocumentID,
			Title:      c.Title,
			URL:        c.URL,
			Source:     c.Source,
			Relevance:  c.Score,
		}
	}
	return out
}

// fallbackAnswer digests the top contexts when no model is available.
func fallbackAnswer(query string, contexts []Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's what I found about '%s':\n", query)
	for i, c := range contexts {
		if i == 3 {
			break
		}
		text := c.ChunkText
		if len(text) > 200 {
			text = text[:200]
		}
		fmt.Fprintf(&sb, "\n- **%s** (%s): %s...", c.Title, c.URL, text)
	}
	sb.WriteString("\n\n(Note: LLM synthesis unavailable. Showing raw search results.)")
	return sb.String()
}
