package store

import (
	"context"
	"fmt"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"gorm.io/gorm"
)

// Completion carries everything written when a submission succeeds.
type Completion struct {
	Result        *models.Result
	TokenEstimate int
	EstimatedCost float64
}

// CountSuccessful counts visible successful submissions of a subject created in [from, to).
func (s *Store) CountSuccessful(ctx context.Context, scope models.Scope, subjectID string, from, to time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	column := "user_id"
	if scope == models.ScopeGroup {
		column = "group_id"
	}
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Scopes(Visible("submissions")).
		Where(column+" = ?", subjectID).
		Where("status = ?", models.SubmissionSuccess).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("store: count submissions: %w", errCount)
	}
	return count, nil
}

// FindSuccessfulByFingerprint returns the newest visible successful submission
// with the given image hash that still has a visible result.
func (s *Store) FindSuccessfulByFingerprint(ctx context.Context, hash string) (*models.Submission, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var row models.Submission
	if errFind := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("submissions.*").
		Joins("JOIN results ON results.submission_id = submissions.id AND results.deleted_at IS NULL").
		Scopes(Visible("submissions")).
		Where("submissions.image_hash = ? AND submissions.status = ?", hash, models.SubmissionSuccess).
		Order("submissions.created_at DESC").
		Preload("Result.Sides").
		Take(&row).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &row, nil
}

// CreatePending durably inserts a new pending submission.
func (s *Store) CreatePending(ctx context.Context, sub *models.Submission) error {
	if err := s.ready(); err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("store: create submission: nil submission")
	}
	sub.Status = models.SubmissionPending
	sub.FailureReason = ""
	if errCreate := s.db.WithContext(ctx).Create(sub).Error; errCreate != nil {
		return fmt.Errorf("store: create submission: %w", errCreate)
	}
	return nil
}

// SetArchiveKey records where the submission's image was archived.
func (s *Store) SetArchiveKey(ctx context.Context, id, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Update("archive_key", key).Error; errUpdate != nil {
		return fmt.Errorf("store: set archive key: %w", errUpdate)
	}
	return nil
}

// MarkFailed moves a pending submission to failed with a reason.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionPending).
		Updates(map[string]any{
			"status":         models.SubmissionFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("store: mark failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

// CompleteWithResult writes the result with its sides and marks the
// submission successful in one transaction.
func (s *Store) CompleteWithResult(ctx context.Context, id string, completion Completion) (*models.Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if completion.Result == nil {
		return nil, fmt.Errorf("store: complete submission: nil result")
	}
	result := completion.Result
	result.SubmissionID = id

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(result).Error; errCreate != nil {
			return fmt.Errorf("store: create result: %w", errCreate)
		}
		res := tx.Model(&models.Submission{}).
			Where("id = ? AND status = ?", id, models.SubmissionPending).
			Updates(map[string]any{
				"status":         models.SubmissionSuccess,
				"failure_reason": "",
				"token_estimate": completion.TokenEstimate,
				"estimated_cost": completion.EstimatedCost,
			})
		if res.Error != nil {
			return fmt.Errorf("store: mark success: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrNotPending
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return result, nil
}

// GetSubmission loads a visible submission with its result, if any.
func (s *Store) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var row models.Submission
	if errFind := s.db.WithContext(ctx).
		Scopes(Visible("submissions")).
		Preload("Result", Visible("results")).
		Preload("Result.Sides").
		Where("submissions.id = ?", id).
		Take(&row).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &row, nil
}
