package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/essaylab/essay-eval-api/internal/models"
)

// ErrSubmissionExists is returned by CreateIfNew when the student already has a
// submission for the requested category.
var ErrSubmissionExists = errors.New("submission already exists for category")

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	CreateIfNew(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error)
	ListFailedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Submission, error)
	Update(ctx context.Context, submission *models.Submission) error
	UpdateFields(ctx context.Context, id uint, updates map[string]interface{}) error
	DeleteCascade(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// CreateIfNew inserts the submission only if no row exists for the same
// (student, category) pair. The existence check and the insert run in one
// transaction so two concurrent submits for a fresh category cannot both pass.
func (r *submissionRepository) CreateIfNew(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Submission{}).
			Where("student_id = ?", submission.StudentID).
			Where("category = ?", submission.Category).
			Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return ErrSubmissionExists
		}

		return tx.Create(submission).Error
	})
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// ListFailedBefore returns up to limit failed submissions whose last update is
// older than cutoff, oldest first. Used by the retry sweeper.
func (r *submissionRepository) ListFailedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.SubmissionStatusFailed).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) UpdateFields(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// DeleteCascade removes evaluation logs and revisions before the submission
// itself, in one transaction, so the cleanup does not depend on engine-level
// cascade configuration.
func (r *submissionRepository) DeleteCascade(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&models.EvaluationLog{}).Error; err != nil {
			return err
		}

		if err := tx.Where("submission_id = ?", id).Delete(&models.Revision{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Submission{}, id)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
}
