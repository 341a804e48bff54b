package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
)

// UpsertChunks writes chunks keyed by (document_id, chunk_index):
// reprocessing a document overwrites rows in place instead of
// duplicating them. Each row is an independent statement; there is no
// batch-level atomicity beyond the caller's job transaction.
func (s *Store) UpsertChunks(ctx context.Context, chunks []models.Chunk) error {
	for _, chunk := range chunks {
		sourceRef, err := json.Marshal(chunk.SourceRef)
		if err != nil {
			return fmt.Errorf("%w: encoding source ref: %v", apperrors.ErrPersistence, err)
		}
		if chunk.ChunkID == uuid.Nil {
			chunk.ChunkID = uuid.New()
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO chunks (chunk_id, user_id, document_id, chunk_index, text, embedding,
			                    page_number, start_offset, end_offset, source_ref, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (document_id, chunk_index) DO UPDATE SET
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding,
				page_number = EXCLUDED.page_number,
				start_offset = EXCLUDED.start_offset,
				end_offset = EXCLUDED.end_offset,
				source_ref = EXCLUDED.source_ref,
				created_at = EXCLUDED.created_at`,
			chunk.ChunkID, chunk.UserID, chunk.DocumentID, chunk.ChunkIndex, chunk.Text,
			chunk.Embedding, chunk.PageNumber, chunk.StartOffset, chunk.EndOffset,
			sourceRef, chunk.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: upserting chunk %d of document %s: %v",
				apperrors.ErrPersistence, chunk.ChunkIndex, chunk.DocumentID, err)
		}
	}
	return nil
}

func (s *Store) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %v", apperrors.ErrPersistence, err)
	}
	return n, nil
}

const chunkColumns = `chunk_id, user_id, document_id, chunk_index, text, embedding,
	page_number, start_offset, end_offset, source_ref, created_at`

// SemanticSearch ranks by pgvector cosine distance: 0 for identical
// vectors, up to 2 for opposite ones, smallest first. The reported
// score is 1 − distance.
func (s *Store) SemanticSearch(ctx context.Context, userID uuid.UUID, queryVec []float32, limit int, f store.SearchFilters) ([]store.ScoredChunk, error) {
	args := []any{pgvector.NewVector(queryVec), userID}
	where, args := filterClause("user_id = $2", args, f)

	query := fmt.Sprintf(`
		SELECT %s, embedding <=> $1 AS distance
		FROM chunks WHERE %s
		ORDER BY distance ASC
		LIMIT %d`, chunkColumns, where, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: semantic search: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var results []store.ScoredChunk
	for rows.Next() {
		var distance float64
		chunk, err := scanChunk(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning semantic result: %v", apperrors.ErrPersistence, err)
		}
		results = append(results, store.ScoredChunk{Chunk: chunk, Score: 1 - distance})
	}
	return results, rows.Err()
}

// KeywordSearch ranks by ts_rank over an english tsvector;
// plainto_tsquery parses the query as an AND of terms.
func (s *Store) KeywordSearch(ctx context.Context, userID uuid.UUID, queryText string, limit int, f store.SearchFilters) ([]store.ScoredChunk, error) {
	args := []any{queryText, userID}
	where, args := filterClause("user_id = $2", args, f)

	query := fmt.Sprintf(`
		SELECT %s, ts_rank(to_tsvector('english', text), plainto_tsquery('english', $1)) AS rank
		FROM chunks
		WHERE %s AND to_tsvector('english', text) @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT %d`, chunkColumns, where, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var results []store.ScoredChunk
	for rows.Next() {
		var rank float64
		chunk, err := scanChunk(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning keyword result: %v", apperrors.ErrPersistence, err)
		}
		results = append(results, store.ScoredChunk{Chunk: chunk, Score: rank})
	}
	return results, rows.Err()
}

// filterClause appends the optional filters to a base condition,
// numbering placeholders after the already-present args.
func filterClause(base string, args []any, f store.SearchFilters) (string, []any) {
	where := base
	if len(f.DocumentIDs) > 0 {
		args = append(args, f.DocumentIDs)
		where += fmt.Sprintf(" AND document_id = ANY($%d)", len(args))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	return where, args
}

func scanChunk(rows pgx.Rows, score *float64) (models.Chunk, error) {
	var chunk models.Chunk
	var sourceRef []byte
	var createdAt time.Time
	err := rows.Scan(&chunk.ChunkID, &chunk.UserID, &chunk.DocumentID, &chunk.ChunkIndex,
		&chunk.Text, &chunk.Embedding, &chunk.PageNumber, &chunk.StartOffset,
		&chunk.EndOffset, &sourceRef, &createdAt, score)
	if err != nil {
		return models.Chunk{}, err
	}
	chunk.CreatedAt = createdAt
	if len(sourceRef) > 0 {
		_ = json.Unmarshal(sourceRef, &chunk.SourceRef)
	}
	return chunk, nil
}
