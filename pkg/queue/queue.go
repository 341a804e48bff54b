package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TaskTypeIngestJob triggers processing of one ingestion job.
const TaskTypeIngestJob = "ingest:job"

// IngestPayload is the task body: just the job identity. The worker
// loads everything else from the store.
type IngestPayload struct {
	JobID uuid.UUID `json:"jobId"`
}

// Queue enqueues ingestion work and caches terminal task status.
type Queue interface {
	EnqueueIngestJob(ctx context.Context, jobID uuid.UUID) error
	SaveFinalStatus(ctx context.Context, jobID uuid.UUID, status string) error
	GetCachedStatus(ctx context.Context, jobID uuid.UUID) (string, error)
}

type Config struct {
	RedisAddr      string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
}

// AsynqQueue is the Redis-backed implementation.
type AsynqQueue struct {
	client *asynq.Client
	redis  *redis.Client
	cfg    Config
}

func NewAsynqQueue(cfg Config) (*AsynqQueue, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ProcessTimeout <= 0 {
		// Audio transcription alone can take tens of minutes.
		cfg.ProcessTimeout = 60 * time.Minute
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	return &AsynqQueue{
		client: asynq.NewClient(redisOpt),
		redis:  redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		cfg:    cfg,
	}, nil
}

func (q *AsynqQueue) EnqueueIngestJob(ctx context.Context, jobID uuid.UUID) error {
	payload, err := json.Marshal(IngestPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	task := asynq.NewTask(TaskTypeIngestJob, payload,
		// Retries are safe: a retried run's claim no-ops once the job
		// left pending.
		asynq.MaxRetry(q.cfg.MaxRetries),
		asynq.Timeout(q.cfg.ProcessTimeout),
		asynq.TaskID(jobID.String()),
	)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func statusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job_status:%s", jobID)
}

func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	if err := q.redis.Set(ctx, statusKey(jobID), status, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (q *AsynqQueue) GetCachedStatus(ctx context.Context, jobID uuid.UUID) (string, error) {
	status, err := q.redis.Get(ctx, statusKey(jobID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get status from redis: %w", err)
	}
	return status, nil
}

func (q *AsynqQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.redis.Close()
}
