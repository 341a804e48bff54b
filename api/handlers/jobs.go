package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/queue"
)

// JobHandler reports ingestion progress.
type JobHandler struct {
	store  store.Store
	queue  queue.Queue
	logger logger.Logger
}

func NewJobHandler(st store.Store, q queue.Queue, log logger.Logger) *JobHandler {
	return &JobHandler{store: st, queue: q, logger: log}
}

// GetJob returns a job's current status. Terminal statuses are served
// from the Redis cache when present, skipping a database round trip.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		handleError(c, h.logger, "Invalid job id",
			fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	if cached, err := h.queue.GetCachedStatus(c.Request.Context(), jobID); err == nil && cached != "" {
		c.JSON(http.StatusOK, gin.H{
			"jobId":  jobID,
			"status": cached,
		})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		handleError(c, h.logger, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":        job.JobID,
		"documentId":   job.DocumentID,
		"status":       string(job.Status),
		"errorMessage": job.ErrorMessage,
		"createdAt":    job.CreatedAt.Format(time.RFC3339),
		"updatedAt":    job.UpdatedAt.Format(time.RFC3339),
	})
}

// ProcessJob re-enqueues an existing job. The claim keeps this safe:
// a job that already left pending no-ops in the worker.
func (h *JobHandler) ProcessJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		handleError(c, h.logger, "Invalid job id",
			fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		handleError(c, h.logger, "Failed to get job", err)
		return
	}

	if err := h.queue.EnqueueIngestJob(c.Request.Context(), job.JobID); err != nil {
		handleError(c, h.logger, "Failed to enqueue job", err)
		return
	}

	h.logger.Info("Job enqueued", logger.String("jobId", jobID.String()))
	c.JSON(http.StatusAccepted, gin.H{
		"jobId":  job.JobID,
		"status": string(job.Status),
	})
}

// GetDocument returns a document and its chunk count.
func (h *JobHandler) GetDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("documentId"))
	if err != nil {
		handleError(c, h.logger, "Invalid document id",
			fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}

	doc, err := h.store.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		handleError(c, h.logger, "Failed to get document", err)
		return
	}
	count, err := h.store.CountChunks(c.Request.Context(), documentID)
	if err != nil {
		handleError(c, h.logger, "Failed to count chunks", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document":   doc,
		"chunkCount": count,
	})
}
