package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivista/knowledge-pipeline/internal/answer"
	"github.com/archivista/knowledge-pipeline/internal/embedding"
	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/search"
	"github.com/archivista/knowledge-pipeline/internal/store/memory"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

// fakeQueue records enqueued jobs and serves a canned status cache.
type fakeQueue struct {
	enqueued []uuid.UUID
	cached   map[uuid.UUID]string
	failNext error
}

func (f *fakeQueue) EnqueueIngestJob(ctx context.Context, jobID uuid.UUID) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.enqueued = append(f.enqueued, jobID)
	return nil
}

func (f *fakeQueue) SaveFinalStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	if f.cached == nil {
		f.cached = make(map[uuid.UUID]string)
	}
	f.cached[jobID] = status
	return nil
}

func (f *fakeQueue) GetCachedStatus(ctx context.Context, jobID uuid.UUID) (string, error) {
	return f.cached[jobID], nil
}

func newTestRouter(t *testing.T, st *memory.Memory, q *fakeQueue) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger()
	embedSvc := embedding.NewService(embedding.NewMockEmbedder(8), 0, log)
	engine := search.NewEngine(st, embedSvc, search.DefaultConfig(), log)
	generator := answer.NewGenerator(answer.NewMockCompleter())

	h := NewHandlers(st, q, engine, generator, log)
	r := gin.New()
	r.POST("/api/v1/ingest", h.Ingest.CreateIngestion)
	r.GET("/api/v1/jobs/:jobId", h.Jobs.GetJob)
	r.POST("/api/v1/jobs/:jobId/process", h.Jobs.ProcessJob)
	r.GET("/api/v1/documents/:documentId", h.Jobs.GetDocument)
	r.POST("/api/v1/query", h.Query.Query)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateIngestion(t *testing.T) {
	st := memory.New()
	q := &fakeQueue{}
	r := newTestRouter(t, st, q)

	userID := uuid.New()
	w := doJSON(t, r, http.MethodPost, "/api/v1/ingest", gin.H{
		"userId":     userID,
		"sourceType": "pdf",
		"title":      "Q2 report",
		"sourceUri":  "minio://bucket/q2.pdf",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.NotEqual(t, uuid.Nil, resp.JobID)
	assert.NotEqual(t, uuid.Nil, resp.DocumentID)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, resp.JobID, q.enqueued[0])

	job, err := st.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, resp.DocumentID, job.DocumentID)
	assert.Equal(t, userID, job.UserID)
}

func TestCreateIngestionRejectsUnknownSourceType(t *testing.T) {
	r := newTestRouter(t, memory.New(), &fakeQueue{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/ingest", gin.H{
		"userId":     uuid.New(),
		"sourceType": "spreadsheet",
		"title":      "x",
		"sourceUri":  "minio://bucket/x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateIngestionRejectsMissingFields(t *testing.T) {
	r := newTestRouter(t, memory.New(), &fakeQueue{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/ingest", gin.H{
		"userId": uuid.New(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobFromStore(t *testing.T) {
	st := memory.New()
	r := newTestRouter(t, st, &fakeQueue{})

	_, job := seedDocument(t, st, "alpha beta")

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+job.JobID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, job.DocumentID.String(), resp["documentId"])
}

func TestGetJobServedFromCache(t *testing.T) {
	st := memory.New()
	q := &fakeQueue{}
	r := newTestRouter(t, st, q)

	// No job row at all; the cache alone answers.
	jobID := uuid.New()
	require.NoError(t, q.SaveFinalStatus(context.Background(), jobID, "completed"))

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp["status"])
}

func TestGetJobNotFound(t *testing.T) {
	r := newTestRouter(t, memory.New(), &fakeQueue{})

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessJobReEnqueues(t *testing.T) {
	st := memory.New()
	q := &fakeQueue{}
	r := newTestRouter(t, st, q)
	_, job := seedDocument(t, st, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/jobs/"+job.JobID.String()+"/process", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, job.JobID, q.enqueued[0])
}

func TestProcessJobUnknownJob(t *testing.T) {
	q := &fakeQueue{}
	r := newTestRouter(t, memory.New(), q)

	w := doJSON(t, r, http.MethodPost, "/api/v1/jobs/"+uuid.NewString()+"/process", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, q.enqueued)
}

func TestGetJobInvalidID(t *testing.T) {
	r := newTestRouter(t, memory.New(), &fakeQueue{})

	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func seedDocument(t *testing.T, st *memory.Memory, chunkText string) (*models.Document, *models.Job) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	doc := &models.Document{
		DocumentID: uuid.New(),
		UserID:     uuid.New(),
		SourceType: models.SourceText,
		Title:      "notes",
		SourceURI:  "minio://bucket/notes.txt",
		Status:     models.StatusPending,
		IngestedAt: now,
	}
	job := &models.Job{
		JobID:      uuid.New(),
		UserID:     doc.UserID,
		DocumentID: doc.DocumentID,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, st.CreateDocumentWithJob(ctx, doc, job))

	if chunkText != "" {
		embedder := embedding.NewMockEmbedder(8)
		vecs, err := embedder.Embed(ctx, []string{chunkText})
		require.NoError(t, err)
		require.NoError(t, st.UpsertChunks(ctx, []models.Chunk{{
			ChunkID:    uuid.New(),
			UserID:     doc.UserID,
			DocumentID: doc.DocumentID,
			ChunkIndex: 0,
			Text:       chunkText,
			Embedding:  pgvector.NewVector(vecs[0]),
			CreatedAt:  now,
		}}))
	}
	return doc, job
}

func TestGetDocumentWithChunkCount(t *testing.T) {
	st := memory.New()
	r := newTestRouter(t, st, &fakeQueue{})
	doc, _ := seedDocument(t, st, "some indexed text")

	w := doJSON(t, r, http.MethodGet, "/api/v1/documents/"+doc.DocumentID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ChunkCount int `json:"chunkCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ChunkCount)
}

func TestQueryReturnsRankedResults(t *testing.T) {
	st := memory.New()
	r := newTestRouter(t, st, &fakeQueue{})
	doc, _ := seedDocument(t, st, "the quarterly revenue exceeded projections")

	w := doJSON(t, r, http.MethodPost, "/api/v1/query", gin.H{
		"userId": doc.UserID,
		"query":  "quarterly revenue",
		"answer": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, doc.DocumentID, resp.Results[0].DocumentID)
	assert.Greater(t, resp.Results[0].Score, 0.0)

	require.NotNil(t, resp.Answer)
	assert.Contains(t, resp.Answer.Answer, "quarterly revenue")
	assert.NotEmpty(t, resp.Answer.Citations)
}

func TestQueryWithoutAnswerFlag(t *testing.T) {
	st := memory.New()
	r := newTestRouter(t, st, &fakeQueue{})
	doc, _ := seedDocument(t, st, "the quarterly revenue exceeded projections")

	w := doJSON(t, r, http.MethodPost, "/api/v1/query", gin.H{
		"userId": doc.UserID,
		"query":  "revenue",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Results)
	assert.Nil(t, resp.Answer)
}

func TestQueryScopedToUser(t *testing.T) {
	st := memory.New()
	r := newTestRouter(t, st, &fakeQueue{})
	seedDocument(t, st, "the quarterly revenue exceeded projections")

	w := doJSON(t, r, http.MethodPost, "/api/v1/query", gin.H{
		"userId": uuid.New(), // different user
		"query":  "revenue",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
}

func TestQueryRejectsMissingQuery(t *testing.T) {
	r := newTestRouter(t, memory.New(), &fakeQueue{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/query", gin.H{
		"userId": uuid.New(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateIngestionEnqueueFailure(t *testing.T) {
	st := memory.New()
	q := &fakeQueue{failNext: fmt.Errorf("redis unreachable")}
	r := newTestRouter(t, st, q)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ingest", gin.H{
		"userId":     uuid.New(),
		"sourceType": "text",
		"title":      "x",
		"sourceUri":  "minio://bucket/x.txt",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, q.enqueued)
}
