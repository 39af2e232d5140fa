package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/essaylab/essay-eval-api/internal/models"
)

// ErrRevisionInProgress is returned by CreateIfIdle when the submission already
// has a revision being processed.
var ErrRevisionInProgress = errors.New("revision already in progress")

// RevisionFilter controls pagination and ordering for revision listings.
type RevisionFilter struct {
	Page      int
	PageSize  int
	SortField string
	Direction string
}

// RevisionRepository defines data operations for revisions.
type RevisionRepository interface {
	Create(ctx context.Context, revision *models.Revision) error
	CreateIfIdle(ctx context.Context, revision *models.Revision) error
	GetByID(ctx context.Context, id uint) (models.Revision, error)
	List(ctx context.Context, filter RevisionFilter) ([]models.Revision, int64, error)
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Revision, error)
	Update(ctx context.Context, revision *models.Revision) error
}

type revisionRepository struct {
	db *gorm.DB
}

// NewRevisionRepository instantiates the repository.
func NewRevisionRepository(db *gorm.DB) RevisionRepository {
	return &revisionRepository{db: db}
}

func (r *revisionRepository) Create(ctx context.Context, revision *models.Revision) error {
	return r.db.WithContext(ctx).Create(revision).Error
}

// CreateIfIdle inserts the revision only when the submission has no active
// revision, where active means PENDING or IN_PROGRESS. Check and insert share a
// transaction so two concurrent create calls cannot both slip past the lookup.
func (r *revisionRepository) CreateIfIdle(ctx context.Context, revision *models.Revision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Revision{}).
			Where("submission_id = ?", revision.SubmissionID).
			Where("status IN ?", []string{models.RevisionStatusPending, models.RevisionStatusInProgress}).
			Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return ErrRevisionInProgress
		}

		return tx.Create(revision).Error
	})
}

func (r *revisionRepository) GetByID(ctx context.Context, id uint) (models.Revision, error) {
	var revision models.Revision
	if err := r.db.WithContext(ctx).First(&revision, id).Error; err != nil {
		return models.Revision{}, err
	}

	return revision, nil
}

var revisionSortFields = map[string]string{
	"id":         "id",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"status":     "status",
}

func (r *revisionRepository) List(ctx context.Context, filter RevisionFilter) ([]models.Revision, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Revision{})

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := revisionSortFields[strings.ToLower(filter.SortField)]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.Direction, "asc") {
		direction = "ASC"
	}
	query = query.Order(column + " " + direction)

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query = query.Limit(pageSize).Offset((page - 1) * pageSize)

	var revisions []models.Revision
	if err := query.Find(&revisions).Error; err != nil {
		return nil, 0, err
	}

	return revisions, total, nil
}

func (r *revisionRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Revision, error) {
	var revisions []models.Revision
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		Find(&revisions).Error; err != nil {
		return nil, err
	}

	return revisions, nil
}

func (r *revisionRepository) Update(ctx context.Context, revision *models.Revision) error {
	return r.db.WithContext(ctx).Save(revision).Error
}
