// Package pipeline drives one ingestion job end to end: claim, extract,
// chunk, embed, persist, and record the terminal status.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/archivista/knowledge-pipeline/internal/chunker"
	"github.com/archivista/knowledge-pipeline/internal/embedding"
	"github.com/archivista/knowledge-pipeline/internal/extraction"
	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/internal/transcription"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/storage"
)

type Pipeline struct {
	store       store.Store
	storage     storage.Storage
	transcriber transcription.Transcriber
	extractor   *extraction.Extractor
	chunker     *chunker.Chunker
	embeddings  *embedding.Service
	params      chunker.Params
	logger      logger.Logger
}

func New(
	st store.Store,
	objStorage storage.Storage,
	transcriber transcription.Transcriber,
	extractor *extraction.Extractor,
	chk *chunker.Chunker,
	embeddings *embedding.Service,
	params chunker.Params,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		store:       st,
		storage:     objStorage,
		transcriber: transcriber,
		extractor:   extractor,
		chunker:     chk,
		embeddings:  embeddings,
		params:      params,
		logger:      log,
	}
}

// Run processes one job. The claim is the only cross-execution
// coordination point: exactly one concurrent caller wins the pending →
// processing transition; the rest observe a no-op and return nil.
// Any failure after a successful claim is recorded on the job
// (status=failed, error message) and then returned, so the invoking
// context also observes it.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID) error {
	result, err := p.store.ClaimJob(ctx, jobID)
	if err != nil {
		return err
	}
	switch result {
	case store.ClaimNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrJobNotFound, jobID)
	case store.ClaimAlreadyHandled:
		p.logger.Info("Job already claimed or terminal, skipping",
			logger.String("jobId", jobID.String()),
		)
		return nil
	}

	p.logger.Info("Claimed job, starting processing",
		logger.String("jobId", jobID.String()),
	)

	if err := p.process(ctx, jobID); err != nil {
		p.logger.Error("Job processing failed",
			logger.String("jobId", jobID.String()),
			logger.Error(err),
		)
		// Best-effort failure record; a secondary failure here must not
		// mask the original error.
		if failErr := p.store.FailJob(ctx, jobID, err.Error()); failErr != nil {
			p.logger.Error("Failed to record job failure status",
				logger.String("jobId", jobID.String()),
				logger.Error(failErr),
			)
		}
		return err
	}

	p.logger.Info("Job completed", logger.String("jobId", jobID.String()))
	return nil
}

func (p *Pipeline) process(ctx context.Context, jobID uuid.UUID) error {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	doc, err := p.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return err
	}

	fragments, err := p.extractFragments(ctx, doc)
	if err != nil {
		return err
	}
	if len(fragments) == 0 {
		// Never silently complete with zero chunks.
		return fmt.Errorf("%w: document %s", apperrors.ErrExtractionEmpty, doc.DocumentID)
	}

	p.logger.Info("Generated fragments, embedding",
		logger.String("documentId", doc.DocumentID.String()),
		logger.Int("fragments", len(fragments)),
	)

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	vectors, err := p.embeddings.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(fragments) {
		return fmt.Errorf("%w: fragments %d, vectors %d",
			apperrors.ErrEmbeddingMismatch, len(fragments), len(vectors))
	}

	now := time.Now().UTC()
	chunks := make([]models.Chunk, len(fragments))
	for i, f := range fragments {
		chunks[i] = models.Chunk{
			ChunkID:     uuid.New(),
			UserID:      job.UserID,
			DocumentID:  job.DocumentID,
			ChunkIndex:  f.ChunkIndex,
			Text:        f.Text,
			Embedding:   pgvector.NewVector(vectors[i]),
			PageNumber:  f.PageNumber,
			StartOffset: f.StartTime,
			EndOffset:   f.EndTime,
			SourceRef:   f.Metadata,
			CreatedAt:   now,
		}
	}

	p.logger.Info("Storing chunks",
		logger.String("documentId", doc.DocumentID.String()),
		logger.Int("chunks", len(chunks)),
	)
	if err := p.store.UpsertChunks(ctx, chunks); err != nil {
		return err
	}

	return p.store.CompleteJob(ctx, jobID)
}

// extractFragments dispatches on the document's source kind. This is a
// thin dispatcher: transcription and text extraction are collaborators;
// the responsibility here is picking the right one and the right
// chunking strategy.
func (p *Pipeline) extractFragments(ctx context.Context, doc *models.Document) ([]chunker.Fragment, error) {
	switch doc.SourceType {
	case models.SourceAudio:
		p.logger.Info("Transcribing audio",
			logger.String("sourceUri", doc.SourceURI),
		)
		result, err := p.transcriber.Transcribe(ctx, doc.SourceURI)
		if err != nil {
			return nil, err
		}
		p.logger.Info("Transcription complete",
			logger.Int("words", len(result.Words)),
		)
		return p.chunker.ChunkTranscript(result.Transcript, result.Words, p.params), nil

	case models.SourcePDF, models.SourceMarkdown, models.SourceText:
		p.logger.Info("Fetching document",
			logger.String("sourceUri", doc.SourceURI),
		)
		data, err := storage.FetchURI(ctx, p.storage, doc.SourceURI)
		if err != nil {
			return nil, err
		}
		content := p.extractor.Extract(ctx, data, doc.SourceType)
		return p.chunker.ChunkDocument(content.Pages, p.params), nil

	default:
		p.logger.Warn("Unsupported source kind",
			logger.String("sourceType", string(doc.SourceType)),
		)
		return nil, nil
	}
}
