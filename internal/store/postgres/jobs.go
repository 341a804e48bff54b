package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/store"
	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
)

func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, user_id, document_id, status, COALESCE(error_message, ''), created_at, updated_at
		FROM jobs WHERE job_id = $1`, jobID)

	var job models.Job
	err := row.Scan(&job.JobID, &job.UserID, &job.DocumentID, &job.Status, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading job: %v", apperrors.ErrPersistence, err)
	}
	return &job, nil
}

// ClaimJob is the single concurrency-control primitive of the pipeline:
// a conditional UPDATE guarded on the current status. Concurrent callers
// racing on the same job see exactly one row affected in exactly one of
// them. The claim and the document-status mirror commit in one
// transaction: either both land before ClaimAcquired is returned, or
// neither does and the job stays pending and claimable.
func (s *Store) ClaimJob(ctx context.Context, jobID uuid.UUID) (store.ClaimResult, error) {
	result := store.ClaimNotFound
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE jobs SET status = $1, updated_at = now()
			WHERE job_id = $2 AND status = $3`,
			models.StatusProcessing, jobID, models.StatusPending)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			// Zero rows is not an error: distinguish a missing job from
			// one already owned by another execution or already terminal.
			var exists bool
			if err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM jobs WHERE job_id = $1)`, jobID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				result = store.ClaimAlreadyHandled
			}
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE documents SET status = $1
			WHERE document_id = (SELECT document_id FROM jobs WHERE job_id = $2)`,
			models.StatusProcessing, jobID); err != nil {
			return err
		}
		result = store.ClaimAcquired
		return nil
	})
	if err != nil {
		return store.ClaimNotFound, fmt.Errorf("%w: claiming job: %v", apperrors.ErrPersistence, err)
	}
	return result, nil
}

func (s *Store) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	return s.finishJob(ctx, jobID, models.StatusCompleted, "")
}

func (s *Store) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	return s.finishJob(ctx, jobID, models.StatusFailed, errorMessage)
}

func (s *Store) finishJob(ctx context.Context, jobID uuid.UUID, status models.IngestionStatus, errorMessage string) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE jobs SET status = $1, error_message = NULLIF($2, ''), updated_at = now()
			WHERE job_id = $3`, status, errorMessage, jobID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrJobNotFound
		}
		_, err = tx.Exec(ctx, `
			UPDATE documents SET status = $1
			WHERE document_id = (SELECT document_id FROM jobs WHERE job_id = $2)`,
			status, jobID)
		return err
	})
	if err != nil && !errors.Is(err, apperrors.ErrJobNotFound) {
		return fmt.Errorf("%w: finishing job: %v", apperrors.ErrPersistence, err)
	}
	return err
}
