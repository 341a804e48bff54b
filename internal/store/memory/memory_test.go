package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
)

func seedJob(t *testing.T, m *Memory, status models.IngestionStatus) (*models.Document, *models.Job) {
	t.Helper()
	now := time.Now().UTC()
	doc := &models.Document{
		DocumentID: uuid.New(),
		UserID:     uuid.New(),
		SourceType: models.SourceAudio,
		Title:      "standup recording",
		SourceURI:  "minio://bucket/standup.mp3",
		Status:     status,
		IngestedAt: now,
	}
	job := &models.Job{
		JobID:      uuid.New(),
		UserID:     doc.UserID,
		DocumentID: doc.DocumentID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, m.CreateDocumentWithJob(context.Background(), doc, job))
	return doc, job
}

func TestClaimJobLifecycle(t *testing.T) {
	m := New()
	ctx := context.Background()
	doc, job := seedJob(t, m, models.StatusPending)

	result, err := m.ClaimJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimAcquired, result)

	// Document status mirrors the job's.
	got, err := m.GetDocument(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)

	// A second claim on the same job is a defined no-op.
	result, err = m.ClaimJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimAlreadyHandled, result)

	require.NoError(t, m.CompleteJob(ctx, job.JobID))
	gotJob, err := m.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, gotJob.Status)
	got, err = m.GetDocument(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	// Terminal jobs cannot be reclaimed.
	result, err = m.ClaimJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimAlreadyHandled, result)
}

func TestClaimJobNotFound(t *testing.T) {
	m := New()
	result, err := m.ClaimJob(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, store.ClaimNotFound, result)
}

func TestClaimJobConcurrent(t *testing.T) {
	m := New()
	ctx := context.Background()
	_, job := seedJob(t, m, models.StatusPending)

	const workers = 32
	results := make([]store.ClaimResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.ClaimJob(ctx, job.JobID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	acquired := 0
	for _, r := range results {
		switch r {
		case store.ClaimAcquired:
			acquired++
		case store.ClaimAlreadyHandled:
		default:
			t.Fatalf("unexpected claim result %v", r)
		}
	}
	assert.Equal(t, 1, acquired, "exactly one worker must win the claim")
}

func TestFailJobRecordsError(t *testing.T) {
	m := New()
	ctx := context.Background()
	doc, job := seedJob(t, m, models.StatusPending)

	_, err := m.ClaimJob(ctx, job.JobID)
	require.NoError(t, err)
	require.NoError(t, m.FailJob(ctx, job.JobID, "extraction produced no content"))

	got, err := m.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "extraction produced no content", got.ErrorMessage)

	gotDoc, err := m.GetDocument(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, gotDoc.Status)
}

func TestGetJobNotFound(t *testing.T) {
	m := New()
	_, err := m.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)
}

func chunkFor(doc *models.Document, index int, text string, vec []float32) models.Chunk {
	return models.Chunk{
		ChunkID:    uuid.New(),
		UserID:     doc.UserID,
		DocumentID: doc.DocumentID,
		ChunkIndex: index,
		Text:       text,
		Embedding:  pgvector.NewVector(vec),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestUpsertChunksIdempotent(t *testing.T) {
	m := New()
	ctx := context.Background()
	doc, _ := seedJob(t, m, models.StatusPending)

	first := chunkFor(doc, 0, "original text", []float32{1, 0})
	require.NoError(t, m.UpsertChunks(ctx, []models.Chunk{first}))

	// Reprocessing overwrites in place under the same (document, index) key.
	second := chunkFor(doc, 0, "replacement text", []float32{0, 1})
	require.NoError(t, m.UpsertChunks(ctx, []models.Chunk{second}))

	count, err := m.CountChunks(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := m.KeywordSearch(ctx, doc.UserID, "replacement", 10, store.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "replacement text", results[0].Chunk.Text)
	// Identity of the original row is preserved.
	assert.Equal(t, first.ChunkID, results[0].Chunk.ChunkID)
}

func TestSemanticSearchRanksByCosineSimilarity(t *testing.T) {
	m := New()
	ctx := context.Background()
	doc, _ := seedJob(t, m, models.StatusPending)

	require.NoError(t, m.UpsertChunks(ctx, []models.Chunk{
		chunkFor(doc, 0, "aligned", []float32{1, 0}),
		chunkFor(doc, 1, "orthogonal", []float32{0, 1}),
		chunkFor(doc, 2, "close", []float32{0.9, 0.1}),
	}))

	results, err := m.SemanticSearch(ctx, doc.UserID, []float32{1, 0}, 2, store.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "aligned", results[0].Chunk.Text)
	assert.Equal(t, "close", results[1].Chunk.Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestKeywordSearchRequiresAllTerms(t *testing.T) {
	m := New()
	ctx := context.Background()
	doc, _ := seedJob(t, m, models.StatusPending)

	require.NoError(t, m.UpsertChunks(ctx, []models.Chunk{
		chunkFor(doc, 0, "the budget review covered revenue and costs", []float32{1}),
		chunkFor(doc, 1, "revenue grew while revenue targets shifted", []float32{1}),
		chunkFor(doc, 2, "an unrelated note about staffing", []float32{1}),
	}))

	results, err := m.KeywordSearch(ctx, doc.UserID, "revenue", 10, store.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Occurrence count ranks the double mention first.
	assert.Equal(t, 1, results[0].Chunk.ChunkIndex)

	// AND semantics: both terms must occur.
	results, err = m.KeywordSearch(ctx, doc.UserID, "budget revenue", 10, store.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Chunk.ChunkIndex)
}

func TestSearchScopedToUser(t *testing.T) {
	m := New()
	ctx := context.Background()
	docA, _ := seedJob(t, m, models.StatusPending)
	docB, _ := seedJob(t, m, models.StatusPending)

	require.NoError(t, m.UpsertChunks(ctx, []models.Chunk{
		chunkFor(docA, 0, "shared phrase alpha", []float32{1, 0}),
		chunkFor(docB, 0, "shared phrase alpha", []float32{1, 0}),
	}))

	results, err := m.KeywordSearch(ctx, docA.UserID, "alpha", 10, store.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docA.DocumentID, results[0].Chunk.DocumentID)

	sem, err := m.SemanticSearch(ctx, docB.UserID, []float32{1, 0}, 10, store.SearchFilters{})
	require.NoError(t, err)
	require.Len(t, sem, 1)
	assert.Equal(t, docB.DocumentID, sem[0].Chunk.DocumentID)
}

func TestSearchFilters(t *testing.T) {
	m := New()
	ctx := context.Background()
	docA, _ := seedJob(t, m, models.StatusPending)
	docB := &models.Document{
		DocumentID: uuid.New(),
		UserID:     docA.UserID,
		SourceType: models.SourceText,
		Title:      "second doc",
		SourceURI:  "minio://bucket/second.txt",
		Status:     models.StatusPending,
		IngestedAt: time.Now().UTC(),
	}
	jobB := &models.Job{JobID: uuid.New(), UserID: docA.UserID, DocumentID: docB.DocumentID, Status: models.StatusPending}
	require.NoError(t, m.CreateDocumentWithJob(ctx, docB, jobB))

	old := chunkFor(docA, 0, "alpha content", []float32{1, 0})
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := chunkFor(docB, 0, "alpha content", []float32{1, 0})
	require.NoError(t, m.UpsertChunks(ctx, []models.Chunk{old, fresh}))

	// Document filter.
	results, err := m.KeywordSearch(ctx, docA.UserID, "alpha", 10, store.SearchFilters{
		DocumentIDs: []uuid.UUID{docA.DocumentID},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docA.DocumentID, results[0].Chunk.DocumentID)

	// Start date excludes the old chunk.
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	results, err = m.KeywordSearch(ctx, docA.UserID, "alpha", 10, store.SearchFilters{
		StartDate: &cutoff,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docB.DocumentID, results[0].Chunk.DocumentID)
}
