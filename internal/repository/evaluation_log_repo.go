package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/essaylab/essay-eval-api/internal/models"
)

// EvaluationLogRepository persists the append-only pipeline audit trail.
type EvaluationLogRepository interface {
	Create(ctx context.Context, log *models.EvaluationLog) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.EvaluationLog, error)
}

type evaluationLogRepository struct {
	db *gorm.DB
}

// NewEvaluationLogRepository instantiates the repository.
func NewEvaluationLogRepository(db *gorm.DB) EvaluationLogRepository {
	return &evaluationLogRepository{db: db}
}

func (r *evaluationLogRepository) Create(ctx context.Context, log *models.EvaluationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *evaluationLogRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.EvaluationLog, error) {
	var logs []models.EvaluationLog
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}

	return logs, nil
}
