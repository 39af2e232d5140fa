package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/essaylab/essay-eval-api/internal/models"
	"github.com/essaylab/essay-eval-api/internal/observability"
	"github.com/essaylab/essay-eval-api/internal/repository"
	"github.com/essaylab/essay-eval-api/pkg/ai"
)

// RetrySweeperConfig tunes the periodic retry job.
type RetrySweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// RetrySweeper periodically re-attempts evaluation of submissions stuck in
// FAILED. Media processing is not repeated on retry; only the AI evaluation
// and highlighting stages run again.
type RetrySweeper struct {
	submissions repository.SubmissionRepository
	revisions   repository.RevisionRepository
	pipeline    *evaluationPipeline
	notifier    FailureNotifier
	cache       *redis.Client
	cfg         RetrySweeperConfig
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRetrySweeper constructs the sweeper.
func NewRetrySweeper(
	submissions repository.SubmissionRepository,
	revisions repository.RevisionRepository,
	logs repository.EvaluationLogRepository,
	evaluator ai.Evaluator,
	notifier FailureNotifier,
	cache *redis.Client,
	cfg RetrySweeperConfig,
	logger zerolog.Logger,
) *RetrySweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}

	return &RetrySweeper{
		submissions: submissions,
		revisions:   revisions,
		pipeline:    newEvaluationPipeline(evaluator, newStageRecorder(logs, logger)),
		notifier:    notifier,
		cache:       cache,
		cfg:         cfg,
		logger:      logger.With().Str("component", "retry_sweeper").Logger(),
		now:         time.Now,
	}
}

// Start launches the ticker loop. It returns immediately; the loop stops when
// ctx is cancelled.
func (s *RetrySweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.logger.Info().Dur("interval", s.cfg.Interval).Msg("retry sweeper started")

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("retry sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Error().Err(err).Msg("retry sweep failed")
				}
			}
		}
	}()
}

// RunOnce performs a single sweep and returns the number of submissions it
// attempted. A sweep that finds nothing eligible is a no-op.
func (s *RetrySweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	stale, err := s.submissions.ListFailedBefore(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	observability.RetrySweeps().Inc()
	if len(stale) == 0 {
		return 0, nil
	}

	s.logger.Info().Int("count", len(stale)).Msg("retrying stale failed submissions")

	for i := range stale {
		// Per-item isolation: one submission failing must not abort the batch.
		s.retryOne(ctx, &stale[i])
	}

	return len(stale), nil
}

func (s *RetrySweeper) retryOne(ctx context.Context, submission *models.Submission) {
	traceID := uuid.NewString()

	submission.Status = models.SubmissionStatusProcessing
	if err := s.submissions.Update(ctx, submission); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to mark retry in progress")
		return
	}

	start := s.now()
	outcome, err := s.pipeline.run(ctx, submission.ID, traceID, submission.Title, submission.Text, submission.Category)
	latency := s.now().Sub(start).Milliseconds()

	revision := models.Revision{
		SubmissionID: submission.ID,
		StudentID:    submission.StudentID,
		Category:     submission.Category,
		Reason:       models.RevisionReasonAutomaticRetry,
		LatencyMS:    &latency,
		TraceID:      traceID,
	}

	if err != nil {
		submission.Status = models.SubmissionStatusFailed
		submission.ErrorMessage = err.Error()
		if updateErr := s.submissions.Update(ctx, submission); updateErr != nil {
			s.logger.Error().Err(updateErr).Uint("submission_id", submission.ID).Msg("failed to persist retry failure")
		}

		revision.Status = models.RevisionStatusFailed
		revision.ErrorMessage = err.Error()
		if createErr := s.revisions.Create(ctx, &revision); createErr != nil {
			s.logger.Warn().Err(createErr).Uint("submission_id", submission.ID).Msg("failed to record retry revision")
		}

		s.notifier.NotifyFailure(ctx, submission.ID, submission.StudentID, err.Error(), traceID)
		observability.RetryAttempts().WithLabelValues("failed").Inc()
		return
	}

	score := outcome.Score
	submission.Status = models.SubmissionStatusCompleted
	submission.Score = &score
	submission.Feedback = outcome.Feedback
	submission.Highlights = datatypes.JSONSlice[string](outcome.Highlights)
	submission.HighlightedText = outcome.HighlightedText
	submission.ErrorMessage = ""
	if err := s.submissions.Update(ctx, submission); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist retry success")
		return
	}

	revision.Status = models.RevisionStatusCompleted
	revision.Score = &score
	revision.Feedback = outcome.Feedback
	revision.Highlights = datatypes.JSONSlice[string](outcome.Highlights)
	revision.HighlightedText = outcome.HighlightedText
	if err := s.revisions.Create(ctx, &revision); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to record retry revision")
	}

	s.invalidateCache(ctx, submission.ID, submission.StudentID)
	observability.RetryAttempts().WithLabelValues("completed").Inc()
}

func (s *RetrySweeper) invalidateCache(ctx context.Context, submissionID, studentID uint) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, submissionCacheKey(submissionID), studentListCacheKey(studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to invalidate submission cache")
	}
}
