// Package store defines the persistence operations the ingestion
// pipeline and retrieval engine require. Implementations must provide
// an atomic conditional update for job claiming, upsert-by-unique-key
// for chunks, and vector-distance plus full-text relevance ranking.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/models"
)

// ClaimResult is the tri-state outcome of a claim attempt. Losing the
// race is defined behavior, not an error; callers branch on the value.
type ClaimResult int

const (
	// ClaimNotFound: no job with that identity exists.
	ClaimNotFound ClaimResult = iota
	// ClaimAcquired: this caller won the pending → processing transition.
	ClaimAcquired
	// ClaimAlreadyHandled: the job is owned by another execution or is
	// already terminal; processing must be skipped.
	ClaimAlreadyHandled
)

// SearchFilters narrows retrieval. Nil/empty fields mean "not set".
// Every query is additionally scoped by user; that scoping is a
// required argument, not a filter.
type SearchFilters struct {
	DocumentIDs []uuid.UUID
	StartDate   *time.Time
	EndDate     *time.Time
}

// ScoredChunk is one retrieval leg's result row.
type ScoredChunk struct {
	Chunk models.Chunk
	// Score is leg-specific: cosine similarity (1 − distance) for the
	// semantic leg, full-text relevance for the keyword leg.
	Score float64
}

type JobStore interface {
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	// ClaimJob attempts the atomic pending → processing transition.
	// The transition must be durable before ClaimAcquired is returned.
	ClaimJob(ctx context.Context, jobID uuid.UUID) (ClaimResult, error)
	// CompleteJob marks the job and its document completed.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error
	// FailJob marks the job and its document failed, recording the cause.
	FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error
}

type DocumentStore interface {
	GetDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error)
	// CreateDocumentWithJob creates a document and its job atomically.
	CreateDocumentWithJob(ctx context.Context, doc *models.Document, job *models.Job) error
}

type ChunkStore interface {
	// UpsertChunks persists chunks idempotently keyed by
	// (document_id, chunk_index): existing rows are overwritten, new
	// rows inserted with fresh identities.
	UpsertChunks(ctx context.Context, chunks []models.Chunk) error
	// SemanticSearch ranks the user's chunks by ascending cosine
	// distance to the query vector.
	SemanticSearch(ctx context.Context, userID uuid.UUID, queryVec []float32, limit int, f SearchFilters) ([]ScoredChunk, error)
	// KeywordSearch ranks the user's chunks by descending full-text
	// relevance for an AND-of-terms parse of the query.
	KeywordSearch(ctx context.Context, userID uuid.UUID, query string, limit int, f SearchFilters) ([]ScoredChunk, error)
	// CountChunks reports how many chunks a document has.
	CountChunks(ctx context.Context, documentID uuid.UUID) (int, error)
}

// Store is the full persistence surface.
type Store interface {
	JobStore
	DocumentStore
	ChunkStore
}
