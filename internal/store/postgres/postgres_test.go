package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

// Integration tests against a migrated database (migrations/schema.sql
// applied). Skipped unless TEST_DATABASE_URL is set.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	st, err := New(context.Background(), dsn, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func newDocumentAndJob() (*models.Document, *models.Job) {
	now := time.Now().UTC()
	doc := &models.Document{
		DocumentID: uuid.New(),
		UserID:     uuid.New(),
		SourceType: models.SourceText,
		Title:      "integration fixture",
		SourceURI:  "minio://bucket/fixture.txt",
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
	return doc, job
}

func TestCreateDocumentWithJobForNewUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// The user id has never been seen before; the transaction must
	// create its row rather than trip the documents FK.
	doc, job := newDocumentAndJob()
	require.NoError(t, st.CreateDocumentWithJob(ctx, doc, job))

	got, err := st.GetDocument(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, doc.UserID, got.UserID)

	// A second document for the same user reuses the row.
	doc2, job2 := newDocumentAndJob()
	doc2.UserID = doc.UserID
	job2.UserID = doc.UserID
	require.NoError(t, st.CreateDocumentWithJob(ctx, doc2, job2))
}

func TestClaimJobLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	doc, job := newDocumentAndJob()
	require.NoError(t, st.CreateDocumentWithJob(ctx, doc, job))

	result, err := st.ClaimJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimAcquired, result)

	// The claim and the document mirror land together.
	gotDoc, err := st.GetDocument(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, gotDoc.Status)

	result, err = st.ClaimJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimAlreadyHandled, result)

	require.NoError(t, st.FailJob(ctx, job.JobID, "extraction produced no content"))
	gotJob, err := st.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, gotJob.Status)
	assert.Equal(t, "extraction produced no content", gotJob.ErrorMessage)

	result, err = st.ClaimJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, store.ClaimAlreadyHandled, result)
}

func TestClaimJobUnknown(t *testing.T) {
	st := newTestStore(t)

	result, err := st.ClaimJob(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, store.ClaimNotFound, result)
}
