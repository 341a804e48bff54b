package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/queue"
)

// IngestHandler accepts new sources for ingestion.
type IngestHandler struct {
	store  store.Store
	queue  queue.Queue
	logger logger.Logger
}

func NewIngestHandler(st store.Store, q queue.Queue, log logger.Logger) *IngestHandler {
	return &IngestHandler{store: st, queue: q, logger: log}
}

type IngestRequest struct {
	UserID     uuid.UUID `json:"userId" binding:"required"`
	SourceType string    `json:"sourceType" binding:"required"`
	Title      string    `json:"title" binding:"required"`
	SourceURI  string    `json:"sourceUri" binding:"required"`
}

type IngestResponse struct {
	JobID      uuid.UUID `json:"jobId"`
	DocumentID uuid.UUID `json:"documentId"`
	Status     string    `json:"status"`
	CreatedAt  string    `json:"createdAt"`
}

var validSourceTypes = map[models.SourceType]bool{
	models.SourceAudio:    true,
	models.SourcePDF:      true,
	models.SourceMarkdown: true,
	models.SourceText:     true,
	models.SourceWeb:      true,
	models.SourceImage:    true,
}

// CreateIngestion registers a document, creates its pending job, and
// enqueues processing.
func (h *IngestHandler) CreateIngestion(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, h.logger, "Invalid ingest request",
			fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	sourceType := models.SourceType(req.SourceType)
	if !validSourceTypes[sourceType] {
		handleError(c, h.logger, "Invalid ingest request",
			fmt.Errorf("%w: unknown source type %q", apperrors.ErrInvalidInput, req.SourceType))
		return
	}

	now := time.Now().UTC()
	doc := &models.Document{
		DocumentID: uuid.New(),
		UserID:     req.UserID,
		SourceType: sourceType,
		Title:      req.Title,
		SourceURI:  req.SourceURI,
		Status:     models.StatusPending,
		IngestedAt: now,
	}
	job := &models.Job{
		JobID:      uuid.New(),
		UserID:     req.UserID,
		DocumentID: doc.DocumentID,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.store.CreateDocumentWithJob(c.Request.Context(), doc, job); err != nil {
		handleError(c, h.logger, "Failed to create ingestion job", err)
		return
	}

	if err := h.queue.EnqueueIngestJob(c.Request.Context(), job.JobID); err != nil {
		// The job row exists in pending; an operator can re-enqueue it.
		handleError(c, h.logger, "Failed to enqueue ingestion job", err)
		return
	}

	h.logger.Info("Ingestion job created",
		logger.String("jobId", job.JobID.String()),
		logger.String("documentId", doc.DocumentID.String()),
		logger.String("sourceType", string(sourceType)),
	)

	c.JSON(http.StatusAccepted, IngestResponse{
		JobID:      job.JobID,
		DocumentID: doc.DocumentID,
		Status:     string(job.Status),
		CreatedAt:  now.Format(time.RFC3339),
	})
}
