package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/app"
	"github.com/archivista/knowledge-pipeline/internal/config"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/queue"
	"github.com/archivista/knowledge-pipeline/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := app.NewLogger(cfg, []string{"stdout", "logs/worker.log"})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := app.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create store", logger.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	pipe, err := app.NewPipeline(cfg, st, log)
	if err != nil {
		log.Error("Failed to build pipeline", logger.Error(err))
		os.Exit(1)
	}

	// One-shot mode: process a single job and exit. Used by schedulers
	// that run one container per job.
	if jobIDStr := os.Getenv("JOB_ID"); jobIDStr != "" {
		jobID, err := uuid.Parse(jobIDStr)
		if err != nil {
			log.Error("Invalid JOB_ID", logger.String("jobId", jobIDStr), logger.Error(err))
			os.Exit(1)
		}
		if err := pipe.Run(ctx, jobID); err != nil {
			log.Error("Job failed", logger.String("jobId", jobIDStr), logger.Error(err))
			os.Exit(1)
		}
		return
	}

	q, err := queue.NewAsynqQueue(queue.Config{
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
	})
	if err != nil {
		log.Error("Failed to create queue", logger.Error(err))
		os.Exit(1)
	}
	defer q.Close()

	workerCfg := &worker.Config{
		RedisAddr:   cfg.RedisAddr,
		RedisDB:     cfg.RedisDB,
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	}

	ingestWorker := worker.NewIngestWorker(workerCfg, pipe, st, q, log)
	if err := ingestWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	ingestWorker.Stop()
	log.Info("Worker stopped")
}
