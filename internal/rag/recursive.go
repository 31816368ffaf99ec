package rag

import (
	"context"
	"log/slog"
	"sort"
)

// maxDepthLimit is the hard ceiling on refinement rounds; deeper loops burn
// model calls with rapidly diminishing returns.
const maxDepthLimit = 3

const (
	defaultTopK      = 5
	followUpTopK     = 3
	maxSourcesInBody = 10
)

// RecursiveAnswer is the result of a recursive RAG run.
type RecursiveAnswer struct {
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	Model           string   `json:"model"`
	DepthReached    int      `json:"depthReached"`
	QueriesExecuted []string `json:"queriesExecuted"`
}

// Controller runs the retrieve-generate-refine loop.
type Controller struct {
	retriever *Retriever
	generator *Generator
	logger    *slog.Logger
}

// NewController wires the recursive RAG loop.
func NewController(retriever *Retriever, generator *Generator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{retriever: retriever, generator: generator, logger: logger}
}

// Answer produces a single-shot answer (no refinement).
func (c *Controller) Answer(ctx context.Context, query string, topK int) (*Answer, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	contexts, err := c.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return c.generator.Generate(ctx, query, contexts)
}

// AnswerStream streams a single-shot answer through onChunk.
func (c *Controller) AnswerStream(ctx context.Context, query string, topK int, onChunk func(string) error) ([]Source, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	contexts, err := c.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if err := c.generator.GenerateStream(ctx, query, contexts, onChunk); err != nil {
		return nil, err
	}
	return buildSourceList(contexts), nil
}

// AnswerRecursive iteratively refines the answer: each round asks the model
// for follow-up queries, retrieves context for them, merges it (deduplicated
// by document) with everything gathered so far, and regenerates from the best
// 2·topK contexts. The loop stops when the model offers no follow-ups, when
// no new context surfaces, or at maxDepth (clamped to 3).
func (c *Controller) AnswerRecursive(ctx context.Context, query string, maxDepth, topK int) (*RecursiveAnswer, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > maxDepthLimit {
		maxDepth = maxDepthLimit
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	contexts, err := c.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	result, err := c.generator.Generate(ctx, query, contexts)
	if err != nil {
		return nil, err
	}

	all := append([]Context(nil), contexts...)
	executed := []string{query}
	depth := 0

	for depth < maxDepth {
		depth++
		c.logger.Info("recursive_refinement", slog.Int("depth", depth), slog.String("query", query))

		followUps := c.generator.FollowUpQueries(ctx, query, result.Answer)
		if len(followUps) == 0 {
			c.logger.Info("no_follow_ups", slog.Int("depth", depth))
			break
		}

		var fresh []Context
		for _, fq := range followUps {
			executed = append(executed, fq)
			fqContexts, err := c.retriever.Retrieve(ctx, fq, followUpTopK)
			if err != nil {
				c.logger.Warn("follow_up_retrieval_failed", slog.String("query", fq),
					slog.String("error", err.Error()))
				continue
			}
			fresh = append(fresh, fqContexts...)
		}
		if len(fresh) == 0 {
			break
		}

		seen := make(map[string]bool, len(all))
		for _, c := range all {
			seen[c.DocumentID] = true
		}
		added := false
		for _, fc := range fresh {
			if !seen[fc.DocumentID] {
				all = append(all, fc)
				seen[fc.DocumentID] = true
				added = true
			}
		}
		if !added {
			break
		}

		sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
		best := all
		if len(best) > topK*2 {
			best = best[:topK*2]
		}
		result, err = c.generator.Generate(ctx, query, best)
		if err != nil {
			return nil, err
		}
	}

	capped := all
	if len(capped) > maxSourcesInBody {
		capped = capped[:maxSourcesInBody]
	}
	return &RecursiveAnswer{
		Answer:          result.Answer,
		Sources:         buildSourceList(capped),
		Model:           result.Model,
		DepthReached:    depth,
		QueriesExecuted: executed,
	}, nil
}
