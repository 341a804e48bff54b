package embedding

import (
	"context"
	"fmt"

	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/resilience"
)

// Embedder converts texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// hardBatchLimit is the provider-side maximum inputs per request.
const hardBatchLimit = 250

// defaultBatchLimit is used when no limit is configured.
const defaultBatchLimit = 128

// Service wraps an Embedder with batch partitioning, per-batch count
// validation, and bounded retries on transient provider errors.
type Service struct {
	embedder   Embedder
	batchLimit int
	logger     logger.Logger
	retry      resilience.RetryConfig
}

func NewService(embedder Embedder, batchLimit int, log logger.Logger) *Service {
	if batchLimit <= 0 {
		batchLimit = defaultBatchLimit
	}
	if batchLimit > hardBatchLimit {
		batchLimit = hardBatchLimit
	}
	return &Service{
		embedder:   embedder,
		batchLimit: batchLimit,
		logger:     log,
	}
}

// GenerateEmbeddings embeds all texts in consecutive batches of at most
// the configured limit, concatenating results in global order. A batch
// returning a different vector count than its input count is a fatal
// mismatch; results are never truncated or padded.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchLimit {
		end := i + s.batchLimit
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]
		s.logger.Info("Generating embeddings for batch",
			logger.Int("batchSize", len(batch)),
			logger.Int("offset", i),
		)

		var vectors [][]float32
		err := resilience.Retry(ctx, s.logger, "embed", s.retry, apperrors.Transient, func() error {
			var embedErr error
			vectors, embedErr = s.embedder.Embed(ctx, batch)
			return embedErr
		})
		if err != nil {
			return nil, err
		}

		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: requested %d, received %d",
				apperrors.ErrEmbeddingMismatch, len(batch), len(vectors))
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// EmbedQuery embeds a single query string.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vector returned for query", apperrors.ErrEmbeddingMismatch)
	}
	return vectors[0], nil
}
