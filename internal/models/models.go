package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// SourceType identifies the kind of source material a document came from.
type SourceType string

const (
	SourceAudio    SourceType = "audio"
	SourcePDF      SourceType = "pdf"
	SourceMarkdown SourceType = "markdown"
	SourceText     SourceType = "text"
	SourceWeb      SourceType = "web"
	SourceImage    SourceType = "image"
)

// IngestionStatus is the lifecycle of a job and its document. The string
// values are wire-stable: they are persisted and returned by the API.
type IngestionStatus string

const (
	StatusPending    IngestionStatus = "pending"
	StatusProcessing IngestionStatus = "processing"
	StatusCompleted  IngestionStatus = "completed"
	StatusFailed     IngestionStatus = "failed"
)

// EmbeddingDim is the dimensionality of chunk embeddings.
const EmbeddingDim = 768

// Document is a submitted source. Immutable after creation except for
// its status, which mirrors the job's.
type Document struct {
	DocumentID uuid.UUID       `json:"documentId"`
	UserID     uuid.UUID       `json:"userId"`
	SourceType SourceType      `json:"sourceType"`
	Title      string          `json:"title"`
	SourceURI  string          `json:"sourceUri"`
	Status     IngestionStatus `json:"status"`
	IngestedAt time.Time       `json:"ingestedAt"`
}

// Job tracks the ingestion of exactly one document.
type Job struct {
	JobID        uuid.UUID       `json:"jobId"`
	UserID       uuid.UUID       `json:"userId"`
	DocumentID   uuid.UUID       `json:"documentId"`
	Status       IngestionStatus `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Chunk is a token-bounded, provenance-tagged fragment of a document's
// extracted text. At most one chunk exists per (document, chunk index);
// reprocessing overwrites in place.
type Chunk struct {
	ChunkID     uuid.UUID       `json:"chunkId"`
	UserID      uuid.UUID       `json:"userId"`
	DocumentID  uuid.UUID       `json:"documentId"`
	ChunkIndex  int             `json:"chunkIndex"`
	Text        string          `json:"text"`
	Embedding   pgvector.Vector `json:"-"`
	PageNumber  *int            `json:"pageNumber,omitempty"`
	StartOffset *float64        `json:"startOffset,omitempty"` // seconds
	EndOffset   *float64        `json:"endOffset,omitempty"`   // seconds
	SourceRef   map[string]any  `json:"sourceRef,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
