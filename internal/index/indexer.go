// Package index builds and maintains both search indexes for a document: the
// inverted posting lists backing BM25 and the chunk embeddings backing
// semantic search.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/semindex"
	"github.com/webseek/webseek/internal/store"
	"github.com/webseek/webseek/internal/textproc"
)

// Embedder is the vector backend the indexer needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Indexer turns stored documents into searchable index entries.
type Indexer struct {
	store    *store.Store
	embedder Embedder
	vectors  *semindex.Index
	logger   *slog.Logger

	chunkSize    int
	chunkOverlap int

	// Concurrent reindexes of the same document would interleave their
	// replace transactions; serialize per document id.
	locks keyedMutex
}

// New creates an indexer. vectors may be shared with the semantic searcher.
func New(st *store.Store, emb Embedder, vectors *semindex.Index, chunkSize, chunkOverlap int, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:        st,
		embedder:     emb,
		vectors:      vectors,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IndexDocument (re)indexes one document: posting lists first, then chunk
// embeddings. The posting transaction commits independently, so a document
// stays keyword-searchable even when the embedding backend is down; the
// returned error lets the caller retry the vector half.
func (ix *Indexer) IndexDocument(ctx context.Context, docID string) error {
	unlock := ix.locks.lock(docID)
	defer unlock()

	doc, err := ix.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(doc.CleanContent) == "" {
		// Nothing to index. Leave the document untouched so it neither
		// counts toward collection stats nor reads as indexed.
		ix.logger.Warn("skipping_empty_document", slog.String("doc_id", docID))
		return nil
	}

	terms := textproc.ProcessWithPositions(doc.CleanContent)
	tokenCount := 0
	for _, positions := range terms {
		tokenCount += len(positions)
	}
	if err := ix.store.ReplacePostings(ctx, docID, terms, tokenCount); err != nil {
		return err
	}
	ix.logger.Debug("indexed_postings", slog.String("doc_id", docID),
		slog.Int("terms", len(terms)), slog.Int("tokens", tokenCount))

	if err := ix.indexVectors(ctx, doc); err != nil {
		ix.logger.Warn("vector_index_failed", slog.String("doc_id", docID),
			slog.String("error", err.Error()))
		return err
	}

	ix.logger.Info("indexed_document", slog.String("doc_id", docID))
	return nil
}

func (ix *Indexer) indexVectors(ctx context.Context, doc *store.Document) error {
	texts := ChunkText(doc.CleanContent, ix.chunkSize, ix.chunkOverlap)
	if len(texts) == 0 {
		if err := ix.store.ReplaceChunks(ctx, doc.ID, nil); err != nil {
			return err
		}
		ix.vectors.RemoveDocument(doc.ID)
		return nil
	}

	vecs, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodeEmbedding, fmt.Errorf("embed %d chunks: %w", len(texts), err))
	}

	chunks := make([]store.Chunk, len(texts))
	for i := range texts {
		chunks[i] = store.Chunk{DocumentID: doc.ID, Index: i, Text: texts[i], Embedding: vecs[i]}
	}
	if err := ix.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return err
	}
	return ix.vectors.ReplaceDocument(doc.ID, vecs)
}

// IndexNew indexes every document that has never been indexed. Returns the
// number of documents successfully indexed and the first error encountered.
func (ix *Indexer) IndexNew(ctx context.Context) (int, error) {
	ids, err := ix.store.ListUnindexedIDs(ctx, 0)
	if err != nil {
		return 0, err
	}
	return ix.indexAll(ctx, ids)
}

// ReindexAll rebuilds every document's index entries, then repopulates the
// autocomplete vocabulary from document titles.
func (ix *Indexer) ReindexAll(ctx context.Context) (int, error) {
	ids, err := ix.store.ListDocumentIDs(ctx, 0)
	if err != nil {
		return 0, err
	}
	n, err := ix.indexAll(ctx, ids)
	if err != nil {
		return n, err
	}
	if err := ix.PopulateTitleTerms(ctx); err != nil {
		return n, err
	}
	return n, nil
}

func (ix *Indexer) indexAll(ctx context.Context, ids []string) (int, error) {
	indexed := 0
	var firstErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return indexed, werrors.Wrap(werrors.ErrCodeInternal, err)
		}
		if err := ix.IndexDocument(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		indexed++
	}
	return indexed, firstErr
}

// PopulateTitleTerms seeds the autocomplete vocabulary with document titles
// (whole phrases, lowercased). Titles a user has already searched for keep
// their learned frequency.
func (ix *Indexer) PopulateTitleTerms(ctx context.Context) error {
	titles, err := ix.store.AllTitles(ctx)
	if err != nil {
		return err
	}
	count := 0
	for _, title := range titles {
		term := strings.ToLower(strings.TrimSpace(title))
		if len(term) < 2 || len(term) > 255 {
			continue
		}
		if err := ix.store.InsertTitleTerm(ctx, term); err != nil {
			return err
		}
		count++
	}
	ix.logger.Info("populated_title_terms", slog.Int("titles", count))
	return nil
}

// keyedMutex serializes work per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
