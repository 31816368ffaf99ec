package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	werrors "github.com/webseek/webseek/internal/errors"
)

// ReplaceChunks atomically replaces a document's embedded chunks.
func (s *Store) ReplaceChunks(ctx context.Context, docID string, chunks []Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE document_id = ?`, docID); err != nil {
			return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("clear chunks: %w", err))
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunk_embeddings (document_id, chunk_index, chunk_text, embedding)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		defer stmt.Close()
		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx, docID, c.Index, c.Text, encodeVector(c.Embedding)); err != nil {
				return werrors.Wrap(werrors.ErrCodePersistence, fmt.Errorf("insert chunk %d: %w", c.Index, err))
			}
		}
		return nil
	})
}

// GetChunk fetches one chunk of a document.
func (s *Store) GetChunk(ctx context.Context, docID string, index int) (*Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var c Chunk
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, chunk_index, chunk_text, embedding
		FROM chunk_embeddings WHERE document_id = ? AND chunk_index = ?`, docID, index).
		Scan(&c.DocumentID, &c.Index, &c.Text, &blob)
	if err == sql.ErrNoRows {
		return nil, werrors.NotFound("chunk", fmt.Sprintf("%s#%d", docID, index))
	}
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	c.Embedding = decodeVector(blob)
	return &c, nil
}

// AllChunks returns every stored chunk. Used to build the vector graph on
// startup; chunk text is included so search result snippets need no second
// round trip.
func (s *Store) AllChunks(ctx context.Context) ([]Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, chunk_index, chunk_text, embedding FROM chunk_embeddings`)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Text, &blob); err != nil {
			return nil, werrors.Wrap(werrors.ErrCodePersistence, err)
		}
		c.Embedding = decodeVector(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunkCount returns the number of stored chunks.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_embeddings`).Scan(&n); err != nil {
		return 0, werrors.Wrap(werrors.ErrCodePersistence, err)
	}
	return n, nil
}

// encodeVector packs float32s little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
