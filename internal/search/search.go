// Package search fuses semantic and keyword retrieval over stored
// chunks with Reciprocal Rank Fusion.
package search

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/embedding"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

// Result is one ranked fragment. Score is the leg score of whichever
// leg returned the chunk first; FusionScore is the RRF sum.
type Result struct {
	Chunk       store.ScoredChunk
	FusionScore float64
	Method      string // "semantic", "keyword", or "hybrid"
}

type Config struct {
	FusionPoolSize int // per-leg pool, independent of the final limit
	RRFConstant    int
}

func DefaultConfig() Config {
	return Config{FusionPoolSize: 20, RRFConstant: 60}
}

// Engine is stateless request/response; safe for concurrent use.
type Engine struct {
	chunks     store.ChunkStore
	embeddings *embedding.Service
	cfg        Config
	logger     logger.Logger
}

func NewEngine(chunks store.ChunkStore, embeddings *embedding.Service, cfg Config, log logger.Logger) *Engine {
	if cfg.FusionPoolSize <= 0 {
		cfg.FusionPoolSize = 20
	}
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = 60
	}
	return &Engine{chunks: chunks, embeddings: embeddings, cfg: cfg, logger: log}
}

// HybridSearch runs both retrieval legs and fuses them by rank. A
// failed query embedding degrades to keyword-only search rather than
// failing the request. Both legs are scoped to the requesting user and
// apply the same filters.
func (e *Engine) HybridSearch(ctx context.Context, queryText string, userID uuid.UUID, limit int, f store.SearchFilters) ([]Result, error) {
	queryVec, err := e.embeddings.EmbedQuery(ctx, queryText)
	if err != nil {
		e.logger.Warn("Query embedding failed, falling back to keyword search",
			logger.Error(err),
		)
		keyword, err := e.chunks.KeywordSearch(ctx, userID, queryText, limit, f)
		if err != nil {
			return nil, err
		}
		results := make([]Result, 0, len(keyword))
		for _, sc := range keyword {
			results = append(results, Result{Chunk: sc, FusionScore: sc.Score, Method: "keyword"})
		}
		return results, nil
	}

	// The legs are independent; they run sequentially so the documented
	// tie-break (semantic leg processed first) holds.
	semantic, err := e.chunks.SemanticSearch(ctx, userID, queryVec, e.cfg.FusionPoolSize, f)
	if err != nil {
		return nil, err
	}
	keyword, err := e.chunks.KeywordSearch(ctx, userID, queryText, e.cfg.FusionPoolSize, f)
	if err != nil {
		return nil, err
	}

	fused := e.fuse(semantic, keyword)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// fuse applies Reciprocal Rank Fusion: each leg contributes
// 1/(k+rank+1) per result, ranks zero-based. A chunk in both legs sums
// both contributions and keeps the metadata of the leg that returned it
// first. Exact score ties keep insertion order.
func (e *Engine) fuse(semantic, keyword []store.ScoredChunk) []Result {
	k := float64(e.cfg.RRFConstant)

	type entry struct {
		result Result
		order  int
	}
	byID := make(map[uuid.UUID]*entry)
	var orderList []uuid.UUID

	add := func(sc store.ScoredChunk, rank int) {
		id := sc.Chunk.ChunkID
		contribution := 1.0 / (k + float64(rank) + 1.0)
		if existing, ok := byID[id]; ok {
			existing.result.FusionScore += contribution
			existing.result.Method = "hybrid"
			return
		}
		byID[id] = &entry{
			result: Result{Chunk: sc, FusionScore: contribution, Method: "hybrid"},
			order:  len(orderList),
		}
		orderList = append(orderList, id)
	}

	for rank, sc := range semantic {
		add(sc, rank)
	}
	for rank, sc := range keyword {
		add(sc, rank)
	}

	results := make([]Result, 0, len(orderList))
	for _, id := range orderList {
		results = append(results, byID[id].result)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FusionScore > results[j].FusionScore
	})
	return results
}
