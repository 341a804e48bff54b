// Package memory is an in-memory Store with the same claim, upsert and
// ranking semantics as the Postgres implementation. It backs tests and
// the "memory" store backend for local development.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
)

type Memory struct {
	mu        sync.Mutex
	documents map[uuid.UUID]*models.Document
	jobs      map[uuid.UUID]*models.Job
	chunks    map[uuid.UUID]*models.Chunk
}

func New() *Memory {
	return &Memory{
		documents: make(map[uuid.UUID]*models.Document),
		jobs:      make(map[uuid.UUID]*models.Job),
		chunks:    make(map[uuid.UUID]*models.Chunk),
	}
}

func (m *Memory) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *Memory) ClaimJob(ctx context.Context, jobID uuid.UUID) (store.ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return store.ClaimNotFound, nil
	}
	if job.Status != models.StatusPending {
		return store.ClaimAlreadyHandled, nil
	}
	job.Status = models.StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if doc, ok := m.documents[job.DocumentID]; ok {
		doc.Status = models.StatusProcessing
	}
	return store.ClaimAcquired, nil
}

func (m *Memory) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	return m.finishJob(jobID, models.StatusCompleted, "")
}

func (m *Memory) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	return m.finishJob(jobID, models.StatusFailed, errorMessage)
}

func (m *Memory) finishJob(jobID uuid.UUID, status models.IngestionStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return apperrors.ErrJobNotFound
	}
	job.Status = status
	job.ErrorMessage = errorMessage
	job.UpdatedAt = time.Now().UTC()
	if doc, ok := m.documents[job.DocumentID]; ok {
		doc.Status = status
	}
	return nil
}

func (m *Memory) GetDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *Memory) CreateDocumentWithJob(ctx context.Context, doc *models.Document, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *doc
	j := *job
	m.documents[d.DocumentID] = &d
	m.jobs[j.JobID] = &j
	return nil
}

func (m *Memory) UpsertChunks(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		existing := m.findByKey(chunk.DocumentID, chunk.ChunkIndex)
		if existing != nil {
			id := existing.ChunkID
			cp := chunk
			cp.ChunkID = id
			m.chunks[id] = &cp
			continue
		}
		cp := chunk
		if cp.ChunkID == uuid.Nil {
			cp.ChunkID = uuid.New()
		}
		m.chunks[cp.ChunkID] = &cp
	}
	return nil
}

// findByKey assumes the caller holds the lock.
func (m *Memory) findByKey(documentID uuid.UUID, chunkIndex int) *models.Chunk {
	for _, c := range m.chunks {
		if c.DocumentID == documentID && c.ChunkIndex == chunkIndex {
			return c
		}
	}
	return nil
}

func (m *Memory) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SemanticSearch(ctx context.Context, userID uuid.UUID, queryVec []float32, limit int, f store.SearchFilters) ([]store.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []store.ScoredChunk
	for _, c := range m.chunks {
		if !m.matches(c, userID, f) {
			continue
		}
		distance := cosineDistance(queryVec, c.Embedding.Slice())
		results = append(results, store.ScoredChunk{Chunk: *c, Score: 1 - distance})
	}
	// Ascending distance is descending similarity.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Memory) KeywordSearch(ctx context.Context, userID uuid.UUID, query string, limit int, f store.SearchFilters) ([]store.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var results []store.ScoredChunk
	for _, c := range m.chunks {
		if !m.matches(c, userID, f) {
			continue
		}
		score, ok := relevance(c.Text, terms)
		if !ok {
			continue
		}
		results = append(results, store.ScoredChunk{Chunk: *c, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// matches assumes the caller holds the lock.
func (m *Memory) matches(c *models.Chunk, userID uuid.UUID, f store.SearchFilters) bool {
	if c.UserID != userID {
		return false
	}
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if c.DocumentID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.StartDate != nil && c.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && c.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.Trim(f, ".,;:!?\"'()[]")
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// relevance implements AND-of-terms matching: all terms must occur;
// the score is the total occurrence count.
func relevance(text string, terms []string) (float64, bool) {
	lower := strings.ToLower(text)
	total := 0
	for _, term := range terms {
		n := strings.Count(lower, term)
		if n == 0 {
			return 0, false
		}
		total += n
	}
	return float64(total), true
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
