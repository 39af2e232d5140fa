package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/essaylab/essay-eval-api/internal/dto"
	"github.com/essaylab/essay-eval-api/internal/middleware"
	"github.com/essaylab/essay-eval-api/internal/models"
	"github.com/essaylab/essay-eval-api/internal/repository"
	"github.com/essaylab/essay-eval-api/pkg/ai"
	"github.com/essaylab/essay-eval-api/pkg/media"
)

// ErrSubmissionNotFound indicates the submission cannot be located or belongs
// to a different student.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrDuplicateSubmission indicates the student already has a submission for
// the requested category.
var ErrDuplicateSubmission = errors.New("submission already exists")

// ErrSubmissionInFlight indicates another submission for the same student and
// category is currently being evaluated.
var ErrSubmissionInFlight = errors.New("submission already in progress")

// ErrEmptySubmission indicates the payload contained no content once markup
// was stripped.
var ErrEmptySubmission = errors.New("submission is empty after sanitization")

// BlobUploader stores a local file durably and returns its URL.
type BlobUploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// SubmissionService drives a submission through its evaluation pipeline and
// exposes the read paths around it.
type SubmissionService interface {
	Submit(ctx context.Context, studentID uint, payload dto.SubmissionCreateRequest, video []byte) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id, studentID uint) (dto.SubmissionResponse, error)
	ListByStudent(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error)
	Delete(ctx context.Context, id uint) error
}

type submissionService struct {
	submissions repository.SubmissionRepository
	revisions   repository.RevisionRepository
	media       media.Processor
	blob        BlobUploader
	pipeline    *evaluationPipeline
	stages      *stageRecorder
	notifier    FailureNotifier
	cache       *redis.Client
	cacheTTL    time.Duration
	inflight    *inflightGuard
	sanitizer   *bluemonday.Policy
	validator   *validator.Validate
	logger      zerolog.Logger
}

// SubmissionServiceConfig bundles collaborators for the orchestrator.
type SubmissionServiceConfig struct {
	Submissions repository.SubmissionRepository
	Revisions   repository.RevisionRepository
	Logs        repository.EvaluationLogRepository
	Evaluator   ai.Evaluator
	Media       media.Processor
	Blob        BlobUploader
	Notifier    FailureNotifier
	Cache       *redis.Client
	CacheTTL    time.Duration
}

// NewSubmissionService constructs the submission orchestrator.
func NewSubmissionService(cfg SubmissionServiceConfig, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	stages := newStageRecorder(cfg.Logs, logger)
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &submissionService{
		submissions: cfg.Submissions,
		revisions:   cfg.Revisions,
		media:       cfg.Media,
		blob:        cfg.Blob,
		pipeline:    newEvaluationPipeline(cfg.Evaluator, stages),
		stages:      stages,
		notifier:    cfg.Notifier,
		cache:       cfg.Cache,
		cacheTTL:    cfg.CacheTTL,
		inflight:    newInflightGuard(),
		sanitizer:   bluemonday.StrictPolicy(),
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

func (s *submissionService) Submit(ctx context.Context, studentID uint, payload dto.SubmissionCreateRequest, video []byte) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if title == "" || text == "" {
		return dto.SubmissionResponse{}, ErrEmptySubmission
	}

	// The in-flight check happens before any storage touch, and the release is
	// deferred so a panic or stage failure cannot permanently wedge the key.
	key := inflightKey(studentID, payload.Category)
	if !s.inflight.Acquire(key) {
		return dto.SubmissionResponse{}, fmt.Errorf("%w for category %s", ErrSubmissionInFlight, payload.Category)
	}
	defer s.inflight.Release(key)

	start := time.Now()
	traceID := s.traceID(ctx)

	submission := models.Submission{
		StudentID: studentID,
		Title:     title,
		Text:      text,
		Category:  payload.Category,
		Status:    models.SubmissionStatusPending,
	}

	if err := s.submissions.CreateIfNew(ctx, &submission); err != nil {
		if errors.Is(err, repository.ErrSubmissionExists) {
			return dto.SubmissionResponse{}, fmt.Errorf("%w for category %s", ErrDuplicateSubmission, payload.Category)
		}
		return dto.SubmissionResponse{}, err
	}

	submission.Status = models.SubmissionStatusProcessing
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.runPipeline(ctx, &submission, video, traceID); err != nil {
		s.failSubmission(ctx, &submission, err, traceID)
		return dto.SubmissionResponse{}, err
	}

	submission.Status = models.SubmissionStatusCompleted
	submission.ErrorMessage = ""
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.invalidateCache(ctx, submission.ID, studentID)

	response := dto.NewSubmissionResponse(submission)
	response.LatencyMS = time.Since(start).Milliseconds()
	return response, nil
}

// runPipeline executes the fixed stage order: media processing and blob upload
// when a video is attached, then AI evaluation and highlighting. Each stage is
// conditional on the previous one succeeding.
func (s *submissionService) runPipeline(ctx context.Context, submission *models.Submission, video []byte, traceID string) error {
	if len(video) > 0 {
		var processed media.Result
		err := s.stages.run(ctx, submission.ID, models.StageVideoProcessing, traceID,
			map[string]interface{}{"input_bytes": len(video)},
			func(stageCtx context.Context) (map[string]interface{}, error) {
				result, err := s.media.Process(stageCtx, video)
				if err != nil {
					return nil, err
				}
				processed = result
				return map[string]interface{}{
					"video_path": result.VideoPath,
					"audio_path": result.AudioPath,
				}, nil
			})
		if err != nil {
			return err
		}
		defer s.media.Cleanup(processed.VideoPath, processed.AudioPath)

		err = s.stages.run(ctx, submission.ID, models.StageBlobUpload, traceID, nil,
			func(stageCtx context.Context) (map[string]interface{}, error) {
				videoURL, audioURL, err := s.uploadMedia(stageCtx, processed)
				if err != nil {
					return nil, err
				}
				submission.VideoURL = videoURL
				submission.AudioURL = audioURL
				return map[string]interface{}{
					"video_url": videoURL,
					"audio_url": audioURL,
				}, nil
			})
		if err != nil {
			return err
		}
	}

	outcome, err := s.pipeline.run(ctx, submission.ID, traceID, submission.Title, submission.Text, submission.Category)
	if err != nil {
		return err
	}

	score := outcome.Score
	submission.Score = &score
	submission.Feedback = outcome.Feedback
	submission.Highlights = datatypes.JSONSlice[string](outcome.Highlights)
	submission.HighlightedText = outcome.HighlightedText
	return nil
}

// uploadMedia pushes the video and audio files concurrently; they are
// independent artifacts with no ordering relationship.
func (s *submissionService) uploadMedia(ctx context.Context, processed media.Result) (string, string, error) {
	var (
		videoURL, audioURL string
		videoErr, audioErr error
		wg                 sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		videoURL, videoErr = s.blob.UploadFile(ctx, processed.VideoPath)
	}()
	go func() {
		defer wg.Done()
		audioURL, audioErr = s.blob.UploadFile(ctx, processed.AudioPath)
	}()
	wg.Wait()

	if videoErr != nil {
		return "", "", fmt.Errorf("upload video: %w", videoErr)
	}
	if audioErr != nil {
		return "", "", fmt.Errorf("upload audio: %w", audioErr)
	}

	return videoURL, audioURL, nil
}

// failSubmission persists the terminal FAILED state, fires the best-effort
// failure notification and records the automatic-retry intent as a terminal
// revision row. The original stage error always wins over anything that goes
// wrong in here.
func (s *submissionService) failSubmission(ctx context.Context, submission *models.Submission, stageErr error, traceID string) {
	submission.Status = models.SubmissionStatusFailed
	submission.ErrorMessage = stageErr.Error()
	if err := s.submissions.Update(ctx, submission); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist failed state")
	}

	s.notifier.NotifyFailure(ctx, submission.ID, submission.StudentID, stageErr.Error(), traceID)

	revision := models.Revision{
		SubmissionID: submission.ID,
		StudentID:    submission.StudentID,
		Category:     submission.Category,
		Reason:       models.RevisionReasonAutomaticRetry,
		Status:       models.RevisionStatusFailed,
		ErrorMessage: stageErr.Error(),
		TraceID:      traceID,
	}
	if err := s.revisions.Create(ctx, &revision); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to record retry intent")
	}

	s.invalidateCache(ctx, submission.ID, submission.StudentID)
}

func (s *submissionService) Get(ctx context.Context, id, studentID uint) (dto.SubmissionResponse, error) {
	cacheKey := submissionCacheKey(id)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.SubmissionResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				if studentID != 0 && response.StudentID != studentID {
					return dto.SubmissionResponse{}, ErrSubmissionNotFound
				}
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read submission cache")
		}
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if studentID != 0 && submission.StudentID != studentID {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	response := dto.NewSubmissionResponse(submission)
	s.storeCache(ctx, cacheKey, response)
	return response, nil
}

func (s *submissionService) ListByStudent(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error) {
	cacheKey := studentListCacheKey(studentID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var responses []dto.SubmissionResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &responses); unmarshalErr == nil {
				return responses, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read submission list cache")
		}
	}

	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	responses := dto.NewSubmissionResponseSlice(submissions)
	s.storeCache(ctx, cacheKey, responses)
	return responses, nil
}

// Delete removes the submission together with its evaluation logs and
// revisions in one orchestrated cascade.
func (s *submissionService) Delete(ctx context.Context, id uint) error {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if err := s.submissions.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	s.invalidateCache(ctx, id, submission.StudentID)
	return nil
}

func (s *submissionService) traceID(ctx context.Context) string {
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *submissionService) storeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store submission cache")
	}
}

func (s *submissionService) invalidateCache(ctx context.Context, submissionID, studentID uint) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, submissionCacheKey(submissionID), studentListCacheKey(studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to invalidate submission cache")
	}
}

func submissionCacheKey(id uint) string {
	return fmt.Sprintf("submission:%d", id)
}

func studentListCacheKey(studentID uint) string {
	return fmt.Sprintf("submissions:student:%d", studentID)
}
