package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/archivista/knowledge-pipeline/api/handlers"
	"github.com/archivista/knowledge-pipeline/api/routes"
	"github.com/archivista/knowledge-pipeline/internal/app"
	"github.com/archivista/knowledge-pipeline/internal/config"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := app.NewLogger(cfg, []string{"stdout", "logs/app.log"})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := app.NewStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create store", logger.Error(err))
	}
	defer closeStore()

	q, err := queue.NewAsynqQueue(queue.Config{
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
	})
	if err != nil {
		log.Fatal("Failed to create queue", logger.Error(err))
	}
	defer q.Close()

	engine, err := app.NewSearchEngine(cfg, st, log)
	if err != nil {
		log.Fatal("Failed to build search engine", logger.Error(err))
	}
	generator, err := app.NewAnswerGenerator(cfg)
	if err != nil {
		log.Fatal("Failed to build answer generator", logger.Error(err))
	}

	h := handlers.NewHandlers(st, q, engine, generator, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
