// Package semindex maintains the in-process nearest-neighbor graph over
// document chunk embeddings. The graph is rebuilt from the store on startup
// and kept in sync as documents are (re)indexed; the store remains the source
// of truth.
package semindex

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	werrors "github.com/webseek/webseek/internal/errors"
	"github.com/webseek/webseek/internal/store"
)

// Hit is one nearest-neighbor match.
type Hit struct {
	DocumentID string
	ChunkIndex int
	// Similarity is cosine similarity in [-1, 1].
	Similarity float64
}

// Index is a thread-safe HNSW graph keyed by (document, chunk).
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	// chunk key "docID#idx" <-> internal graph key
	keyByChunk map[string]uint64
	chunkByKey map[uint64]chunkRef
	// docChunks tracks which graph keys belong to each document so a
	// reindex can orphan them all.
	docChunks map[string][]uint64
	nextKey   uint64
}

type chunkRef struct {
	docID string
	index int
}

// New creates an empty index for vectors of the given width.
func New(dims int) *Index {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.Ml = 0.25
	g.EfSearch = 20
	return &Index{
		graph:      g,
		dims:       dims,
		keyByChunk: make(map[string]uint64),
		chunkByKey: make(map[uint64]chunkRef),
		docChunks:  make(map[string][]uint64),
	}
}

// Load bulk-inserts persisted chunks, typically at startup.
func (x *Index) Load(chunks []store.Chunk) error {
	for _, c := range chunks {
		if err := x.Add(c.DocumentID, c.Index, c.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts one chunk vector, replacing any existing entry for the same
// (document, chunk) pair. Replaced nodes are orphaned rather than removed:
// deleting graph nodes is unreliable, orphans are filtered at search time.
func (x *Index) Add(docID string, chunkIndex int, vec []float32) error {
	if len(vec) != x.dims {
		return werrors.Newf(werrors.ErrCodeEmbedding,
			"vector dimension mismatch: want %d, got %d", x.dims, len(vec))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	ck := chunkKey(docID, chunkIndex)
	if old, ok := x.keyByChunk[ck]; ok {
		delete(x.chunkByKey, old)
	}

	key := x.nextKey
	x.nextKey++
	x.graph.Add(hnsw.MakeNode(key, vec))
	x.keyByChunk[ck] = key
	x.chunkByKey[key] = chunkRef{docID: docID, index: chunkIndex}
	x.docChunks[docID] = append(x.docChunks[docID], key)
	return nil
}

// ReplaceDocument atomically swaps a document's chunk set for a new one.
func (x *Index) ReplaceDocument(docID string, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dims {
			return werrors.Newf(werrors.ErrCodeEmbedding,
				"vector dimension mismatch at chunk %d: want %d, got %d", i, x.dims, len(v))
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeDocLocked(docID)
	for i, v := range vectors {
		key := x.nextKey
		x.nextKey++
		x.graph.Add(hnsw.MakeNode(key, v))
		x.keyByChunk[chunkKey(docID, i)] = key
		x.chunkByKey[key] = chunkRef{docID: docID, index: i}
		x.docChunks[docID] = append(x.docChunks[docID], key)
	}
	return nil
}

// RemoveDocument orphans all of a document's chunks.
func (x *Index) RemoveDocument(docID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeDocLocked(docID)
}

func (x *Index) removeDocLocked(docID string) {
	for _, key := range x.docChunks[docID] {
		if ref, ok := x.chunkByKey[key]; ok && ref.docID == docID {
			delete(x.chunkByKey, key)
			delete(x.keyByChunk, chunkKey(ref.docID, ref.index))
		}
	}
	delete(x.docChunks, docID)
}

// Search returns up to k nearest chunks by cosine similarity, best first.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dims {
		return nil, werrors.Newf(werrors.ErrCodeEmbedding,
			"query dimension mismatch: want %d, got %d", x.dims, len(query))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	// Overfetch to compensate for orphaned nodes still in the graph.
	orphans := x.graph.Len() - len(x.chunkByKey)
	nodes := x.graph.Search(query, k+orphans)

	hits := make([]Hit, 0, k)
	for _, node := range nodes {
		ref, ok := x.chunkByKey[node.Key]
		if !ok {
			continue
		}
		dist := float64(x.graph.Distance(query, node.Value))
		hits = append(hits, Hit{
			DocumentID: ref.docID,
			ChunkIndex: ref.index,
			Similarity: 1 - dist,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Len returns the number of live chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunkByKey)
}

func chunkKey(docID string, idx int) string {
	return fmt.Sprintf("%s#%d", docID, idx)
}
