package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
)

func (s *Store) GetDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, user_id, source_type, title, source_uri, status, ingested_at
		FROM documents WHERE document_id = $1`, documentID)

	var doc models.Document
	err := row.Scan(&doc.DocumentID, &doc.UserID, &doc.SourceType, &doc.Title, &doc.SourceURI, &doc.Status, &doc.IngestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading document: %v", apperrors.ErrPersistence, err)
	}
	return &doc, nil
}

// CreateDocumentWithJob inserts a document and its job in one
// transaction; neither exists without the other. The owning user row is
// created on first contact so the document FK always has an anchor.
func (s *Store) CreateDocumentWithJob(ctx context.Context, doc *models.Document, job *models.Job) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (user_id) VALUES ($1)
			ON CONFLICT (user_id) DO NOTHING`, doc.UserID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (document_id, user_id, source_type, title, source_uri, status, ingested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			doc.DocumentID, doc.UserID, doc.SourceType, doc.Title, doc.SourceURI, doc.Status, doc.IngestedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO jobs (job_id, user_id, document_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			job.JobID, job.UserID, job.DocumentID, job.Status, job.CreatedAt, job.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: creating document with job: %v", apperrors.ErrPersistence, err)
	}
	return nil
}
