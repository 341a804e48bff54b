package handlers

import (
	"github.com/archivista/knowledge-pipeline/internal/answer"
	"github.com/archivista/knowledge-pipeline/internal/search"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/queue"
)

type Handlers struct {
	Ingest *IngestHandler
	Jobs   *JobHandler
	Query  *QueryHandler
}

func NewHandlers(
	st store.Store,
	q queue.Queue,
	engine *search.Engine,
	generator *answer.Generator,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Ingest: NewIngestHandler(st, q, log),
		Jobs:   NewJobHandler(st, q, log),
		Query:  NewQueryHandler(engine, generator, log),
	}
}
