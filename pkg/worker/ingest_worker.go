package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/pipeline"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/queue"
)

// IngestWorker consumes ingest:job tasks and drives the pipeline.
type IngestWorker struct {
	*BaseWorker
	pipeline *pipeline.Pipeline
	jobs     store.JobStore
	queue    queue.Queue
}

func NewIngestWorker(cfg *Config, p *pipeline.Pipeline, jobs store.JobStore, q queue.Queue, log logger.Logger) *IngestWorker {
	w := &IngestWorker{
		BaseWorker: newBaseWorker(cfg, log),
		pipeline:   p,
		jobs:       jobs,
		queue:      q,
	}
	w.mux.HandleFunc(queue.TaskTypeIngestJob, w.handleIngestJob)
	return w
}

func (w *IngestWorker) handleIngestJob(ctx context.Context, t *asynq.Task) error {
	var payload queue.IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	w.logger.Info("Processing ingest task",
		logger.String("jobId", payload.JobID.String()),
	)
	runErr := w.pipeline.Run(ctx, payload.JobID)
	w.cacheTerminalStatus(ctx, payload)
	return runErr
}

// cacheTerminalStatus copies the job's final status into Redis so the
// API can answer status polls without hitting the database. Best effort;
// the store stays the source of truth.
func (w *IngestWorker) cacheTerminalStatus(ctx context.Context, payload queue.IngestPayload) {
	job, err := w.jobs.GetJob(ctx, payload.JobID)
	if err != nil {
		return
	}
	if job.Status != models.StatusCompleted && job.Status != models.StatusFailed {
		return
	}
	if err := w.queue.SaveFinalStatus(ctx, payload.JobID, string(job.Status)); err != nil {
		w.logger.Warn("Failed to cache job status",
			logger.String("jobId", payload.JobID.String()),
			logger.Error(err),
		)
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
