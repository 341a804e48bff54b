// Package app assembles configured components for the entrypoints. All
// provider selection (postgres vs memory, real vs mock clients) happens
// here so the binaries stay thin.
package app

import (
	"context"
	"fmt"

	"github.com/archivista/knowledge-pipeline/internal/answer"
	"github.com/archivista/knowledge-pipeline/internal/chunker"
	"github.com/archivista/knowledge-pipeline/internal/config"
	"github.com/archivista/knowledge-pipeline/internal/embedding"
	"github.com/archivista/knowledge-pipeline/internal/extraction"
	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/pipeline"
	"github.com/archivista/knowledge-pipeline/internal/search"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/internal/store/memory"
	"github.com/archivista/knowledge-pipeline/internal/store/postgres"
	"github.com/archivista/knowledge-pipeline/internal/transcription"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/storage"
)

func NewLogger(cfg *config.Config, outputs []string) (logger.Logger, error) {
	return logger.New(
		logger.WithLevel(cfg.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths(outputs),
	)
}

// NewStore selects the persistence backend. The returned cleanup is a
// no-op for the in-memory store.
func NewStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		st, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}

func NewEmbeddingService(cfg *config.Config, log logger.Logger) (*embedding.Service, error) {
	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		client, err := embedding.NewOpenAIClient(embedding.OpenAIConfig{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout,
		})
		if err != nil {
			return nil, err
		}
		embedder = client
	case "mock":
		embedder = embedding.NewMockEmbedder(models.EmbeddingDim)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	return embedding.NewService(embedder, cfg.Embedding.BatchLimit, log), nil
}

func newTranscriber(cfg *config.Config, objStorage storage.Storage, log logger.Logger) (transcription.Transcriber, error) {
	switch cfg.Transcription.Provider {
	case "whisper":
		return transcription.NewWhisperClient(transcription.WhisperConfig{
			BaseURL: cfg.Transcription.BaseURL,
			APIKey:  cfg.Transcription.APIKey,
			Model:   cfg.Transcription.Model,
			Timeout: cfg.Transcription.Timeout,
		}, objStorage, log)
	case "mock":
		return transcription.NewMockTranscriber(), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", cfg.Transcription.Provider)
	}
}

// NewPipeline builds the full ingestion pipeline from configuration.
func NewPipeline(cfg *config.Config, st store.Store, log logger.Logger) (*pipeline.Pipeline, error) {
	objStorage, err := storage.New(storage.Backend(cfg.Storage.Backend), storage.Config{
		Bucket:    cfg.Storage.Bucket,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	}, log)
	if err != nil {
		return nil, err
	}

	transcriber, err := newTranscriber(cfg, objStorage, log)
	if err != nil {
		return nil, err
	}

	embeddings, err := NewEmbeddingService(cfg, log)
	if err != nil {
		return nil, err
	}

	chk, err := chunker.New()
	if err != nil {
		return nil, err
	}

	params := chunker.Params{
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	}

	return pipeline.New(
		st,
		objStorage,
		transcriber,
		extraction.NewExtractor(log),
		chk,
		embeddings,
		params,
		log,
	), nil
}

func NewSearchEngine(cfg *config.Config, st store.Store, log logger.Logger) (*search.Engine, error) {
	embeddings, err := NewEmbeddingService(cfg, log)
	if err != nil {
		return nil, err
	}
	return search.NewEngine(st, embeddings, search.Config{
		FusionPoolSize: cfg.Search.FusionPoolSize,
		RRFConstant:    cfg.Search.RRFConstant,
	}, log), nil
}

func NewAnswerGenerator(cfg *config.Config) (*answer.Generator, error) {
	var completer answer.Completer
	switch cfg.Answer.Provider {
	case "openai":
		client, err := answer.NewOpenAIClient(answer.OpenAIConfig{
			BaseURL: cfg.Answer.BaseURL,
			APIKey:  cfg.Answer.APIKey,
			Model:   cfg.Answer.Model,
			Timeout: cfg.Answer.Timeout,
		})
		if err != nil {
			return nil, err
		}
		completer = client
	case "mock":
		completer = answer.NewMockCompleter()
	default:
		return nil, fmt.Errorf("unsupported answer provider: %s", cfg.Answer.Provider)
	}
	return answer.NewGenerator(completer), nil
}
