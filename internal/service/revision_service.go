package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/essaylab/essay-eval-api/internal/dto"
	"github.com/essaylab/essay-eval-api/internal/middleware"
	"github.com/essaylab/essay-eval-api/internal/models"
	"github.com/essaylab/essay-eval-api/internal/observability"
	"github.com/essaylab/essay-eval-api/internal/repository"
	"github.com/essaylab/essay-eval-api/pkg/ai"
)

// ErrRevisionNotFound indicates the revision cannot be located.
var ErrRevisionNotFound = errors.New("revision not found")

// ErrRevisionInProgress indicates the submission already has a revision being
// processed.
var ErrRevisionInProgress = errors.New("revision already in progress")

// RevisionService creates and drives re-evaluations of existing submissions.
// Creation returns as soon as the PENDING row exists; the pipeline itself runs
// in the background and its outcome is observable via the read paths.
type RevisionService interface {
	Create(ctx context.Context, payload dto.RevisionCreateRequest) (dto.RevisionResponse, error)
	Get(ctx context.Context, id uint) (dto.RevisionResponse, error)
	List(ctx context.Context, query dto.RevisionListQuery) (dto.RevisionListResponse, error)
}

type revisionService struct {
	submissions repository.SubmissionRepository
	revisions   repository.RevisionRepository
	pipeline    *evaluationPipeline
	notifier    FailureNotifier
	cache       *redis.Client
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewRevisionService constructs the revision orchestrator.
func NewRevisionService(
	submissions repository.SubmissionRepository,
	revisions repository.RevisionRepository,
	logs repository.EvaluationLogRepository,
	evaluator ai.Evaluator,
	notifier FailureNotifier,
	cache *redis.Client,
	validate *validator.Validate,
	logger zerolog.Logger,
) RevisionService {
	return &revisionService{
		submissions: submissions,
		revisions:   revisions,
		pipeline:    newEvaluationPipeline(evaluator, newStageRecorder(logs, logger)),
		notifier:    notifier,
		cache:       cache,
		validator:   validate,
		logger:      logger.With().Str("component", "revision_service").Logger(),
	}
}

func (s *revisionService) Create(ctx context.Context, payload dto.RevisionCreateRequest) (dto.RevisionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RevisionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RevisionResponse{}, ErrSubmissionNotFound
		}
		return dto.RevisionResponse{}, err
	}

	traceID := middleware.CorrelationIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}

	revision := models.Revision{
		SubmissionID: submission.ID,
		StudentID:    submission.StudentID,
		Category:     submission.Category,
		Reason:       payload.Reason,
		Status:       models.RevisionStatusPending,
		TraceID:      traceID,
	}

	if err := s.revisions.CreateIfIdle(ctx, &revision); err != nil {
		if errors.Is(err, repository.ErrRevisionInProgress) {
			return dto.RevisionResponse{}, fmt.Errorf("%w for submission %d", ErrRevisionInProgress, submission.ID)
		}
		return dto.RevisionResponse{}, err
	}

	// Detach from the request context so the pipeline survives the response,
	// but keep the correlation id for the audit trail.
	background := middleware.ContextWithCorrelation(context.Background(), traceID)
	go s.process(background, revision.ID)

	return dto.NewRevisionResponse(revision), nil
}

// process drives one revision through IN_PROGRESS to a terminal state. Stage
// failures are recorded on the revision only; the parent submission keeps its
// previous result.
func (s *revisionService) process(ctx context.Context, revisionID uint) {
	revision, err := s.revisions.GetByID(ctx, revisionID)
	if err != nil {
		s.logger.Error().Err(err).Uint("revision_id", revisionID).Msg("failed to load revision for processing")
		return
	}

	submission, err := s.submissions.GetByID(ctx, revision.SubmissionID)
	if err != nil {
		s.finishFailed(ctx, &revision, 0, fmt.Errorf("load submission %d: %w", revision.SubmissionID, err))
		return
	}

	revision.Status = models.RevisionStatusInProgress
	if err := s.revisions.Update(ctx, &revision); err != nil {
		s.logger.Error().Err(err).Uint("revision_id", revisionID).Msg("failed to mark revision in progress")
		return
	}

	start := time.Now()
	// Revisions re-score the submission's stored content, never their own fields.
	outcome, err := s.pipeline.run(ctx, submission.ID, revision.TraceID, submission.Title, submission.Text, submission.Category)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		s.finishFailed(ctx, &revision, latency, err)
		return
	}

	score := outcome.Score
	revision.Status = models.RevisionStatusCompleted
	revision.Score = &score
	revision.Feedback = outcome.Feedback
	revision.Highlights = datatypes.JSONSlice[string](outcome.Highlights)
	revision.HighlightedText = outcome.HighlightedText
	revision.ErrorMessage = ""
	revision.LatencyMS = &latency
	if err := s.revisions.Update(ctx, &revision); err != nil {
		s.logger.Error().Err(err).Uint("revision_id", revision.ID).Msg("failed to persist completed revision")
		return
	}

	// Copy the revised grading back so a plain submission read reflects it.
	updates := map[string]interface{}{
		"status":           models.SubmissionStatusCompleted,
		"score":            outcome.Score,
		"feedback":         outcome.Feedback,
		"highlights":       datatypes.JSONSlice[string](outcome.Highlights),
		"highlighted_text": outcome.HighlightedText,
		"error_message":    "",
	}
	if err := s.submissions.UpdateFields(ctx, submission.ID, updates); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to copy revision result onto submission")
		return
	}

	s.invalidateSubmissionCache(ctx, submission.ID, submission.StudentID)
	observability.RevisionsProcessed().WithLabelValues("completed").Inc()
}

func (s *revisionService) finishFailed(ctx context.Context, revision *models.Revision, latency int64, cause error) {
	revision.Status = models.RevisionStatusFailed
	revision.ErrorMessage = cause.Error()
	if latency > 0 {
		revision.LatencyMS = &latency
	}
	if err := s.revisions.Update(ctx, revision); err != nil {
		s.logger.Error().Err(err).Uint("revision_id", revision.ID).Msg("failed to persist failed revision")
	}

	s.notifier.NotifyFailure(ctx, revision.SubmissionID, revision.StudentID, cause.Error(), revision.TraceID)
	observability.RevisionsProcessed().WithLabelValues("failed").Inc()
}

func (s *revisionService) Get(ctx context.Context, id uint) (dto.RevisionResponse, error) {
	revision, err := s.revisions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RevisionResponse{}, ErrRevisionNotFound
		}
		return dto.RevisionResponse{}, err
	}

	return dto.NewRevisionResponse(revision), nil
}

func (s *revisionService) List(ctx context.Context, query dto.RevisionListQuery) (dto.RevisionListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.RevisionListResponse{}, err
	}

	filter := repository.RevisionFilter{
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortField: query.SortField,
		Direction: query.Direction,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	revisions, total, err := s.revisions.List(ctx, filter)
	if err != nil {
		return dto.RevisionListResponse{}, err
	}

	totalPages := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))

	return dto.RevisionListResponse{
		Items:      dto.NewRevisionResponseSlice(revisions),
		Total:      total,
		TotalPages: totalPages,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}

func (s *revisionService) invalidateSubmissionCache(ctx context.Context, submissionID, studentID uint) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, submissionCacheKey(submissionID), studentListCacheKey(studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to invalidate submission cache")
	}
}
