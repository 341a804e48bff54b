package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/answer"
	"github.com/archivista/knowledge-pipeline/internal/search"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

const defaultQueryLimit = 10

// QueryHandler serves hybrid retrieval and answer generation.
type QueryHandler struct {
	engine    *search.Engine
	generator *answer.Generator
	logger    logger.Logger
}

func NewQueryHandler(engine *search.Engine, generator *answer.Generator, log logger.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, generator: generator, logger: log}
}

type QueryFilters struct {
	DocumentIDs []uuid.UUID `json:"documentIds"`
	StartDate   *time.Time  `json:"startDate"`
	EndDate     *time.Time  `json:"endDate"`
}

type QueryRequest struct {
	UserID  uuid.UUID    `json:"userId" binding:"required"`
	Query   string       `json:"query" binding:"required"`
	Limit   int          `json:"limit"`
	Filters QueryFilters `json:"filters"`
	// Answer controls whether the LLM is called; retrieval-only when false.
	Answer bool `json:"answer"`
}

type QueryResultItem struct {
	ChunkID     uuid.UUID `json:"chunkId"`
	DocumentID  uuid.UUID `json:"documentId"`
	Text        string    `json:"text"`
	Score       float64   `json:"score"`
	Method      string    `json:"method"`
	PageNumber  *int      `json:"pageNumber,omitempty"`
	StartOffset *float64  `json:"startOffset,omitempty"`
	EndOffset   *float64  `json:"endOffset,omitempty"`
}

type QueryResponse struct {
	Results []QueryResultItem `json:"results"`
	Answer  *answer.Answer    `json:"answer,omitempty"`
}

// Query runs hybrid search scoped to the requesting user. Explicit date
// filters win over recency phrasing detected in the query text.
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, h.logger, "Invalid query request",
			fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	filters := store.SearchFilters{
		DocumentIDs: req.Filters.DocumentIDs,
		StartDate:   req.Filters.StartDate,
		EndDate:     req.Filters.EndDate,
	}
	filters = search.WithTemporalIntent(req.Query, filters, time.Now().UTC())

	results, err := h.engine.HybridSearch(c.Request.Context(), req.Query, req.UserID, limit, filters)
	if err != nil {
		handleError(c, h.logger, "Search failed", err)
		return
	}

	resp := QueryResponse{Results: make([]QueryResultItem, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, QueryResultItem{
			ChunkID:     r.Chunk.Chunk.ChunkID,
			DocumentID:  r.Chunk.Chunk.DocumentID,
			Text:        r.Chunk.Chunk.Text,
			Score:       r.FusionScore,
			Method:      r.Method,
			PageNumber:  r.Chunk.Chunk.PageNumber,
			StartOffset: r.Chunk.Chunk.StartOffset,
			EndOffset:   r.Chunk.Chunk.EndOffset,
		})
	}

	if req.Answer {
		ans, err := h.generator.Generate(c.Request.Context(), req.Query, results)
		if err != nil {
			handleError(c, h.logger, "Answer generation failed", err)
			return
		}
		resp.Answer = ans
	}

	c.JSON(http.StatusOK, resp)
}
