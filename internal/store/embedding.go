package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"

	"prreview/internal/apperr"
)

// GetEmbedding returns a cached vector for contentHash, or ok=false on a
// cache miss. Backs the Embeddings Engine's content-hash cache (spec.md
// §4.4), letting repeated blocks across files and PRs skip re-encoding.
func (s *Store) GetEmbedding(ctx context.Context, contentHash string) (vector []float32, ok bool, err error) {
	var dims int
	var blob []byte
	row := s.db.QueryRowContext(ctx, `SELECT dims, vector FROM embedding_cache WHERE content_hash = ?`, contentHash)
	if err := row.Scan(&dims, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Wrap(apperr.KindDatabase, "get cached embedding", err)
	}
	return decodeVector(blob, dims), true, nil
}

// PutEmbedding persists a vector under contentHash. Idempotent: a second
// worker encoding the same block concurrently is a silent no-op rather
// than a constraint error.
func (s *Store) PutEmbedding(ctx context.Context, contentHash string, vector []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (content_hash, dims, vector) VALUES (?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING`,
		contentHash, len(vector), encodeVector(vector))
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "put cached embedding", err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dims int) []float32 {
	out := make([]float32, dims)
	for i := 0; i < dims && (i+1)*4 <= len(buf); i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
