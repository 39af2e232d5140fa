package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/essaylab/essay-eval-api/internal/models"
	"github.com/essaylab/essay-eval-api/internal/repository"
	"github.com/essaylab/essay-eval-api/pkg/ai"
)

type sweeperFixture struct {
	db        *gorm.DB
	evaluator *stubEvaluator
	notifier  *captureNotifier
	sweeper   *RetrySweeper
}

func newSweeperFixture(t *testing.T, cfg RetrySweeperConfig) *sweeperFixture {
	t.Helper()
	db := setupServiceDB(t)

	f := &sweeperFixture{
		db: db,
		evaluator: &stubEvaluator{result: ai.EssayEvaluation{
			Score:      7,
			Feedback:   "Recovered on retry.",
			Highlights: []string{"like pizza"},
		}},
		notifier: &captureNotifier{},
	}

	f.sweeper = NewRetrySweeper(
		repository.NewSubmissionRepository(db),
		repository.NewRevisionRepository(db),
		repository.NewEvaluationLogRepository(db),
		f.evaluator,
		f.notifier,
		setupServiceRedis(t),
		cfg,
		zerolog.Nop(),
	)

	return f
}

// seedFailedSubmissions inserts count FAILED submissions whose updated_at is
// age in the past. Each row gets its own student so the unique category slot
// never collides.
func (f *sweeperFixture) seedFailedSubmissions(t *testing.T, count int, age time.Duration) []uint {
	t.Helper()
	ids := make([]uint, 0, count)
	stamp := time.Now().UTC().Add(-age)
	for i := 0; i < count; i++ {
		student := seedServiceStudent(t, f.db)
		submission := models.Submission{
			StudentID:    student.ID,
			Title:        fmt.Sprintf("Essay %d", i),
			Text:         "I like pizza and I want to eat it every day.",
			Category:     models.CategoryWriting,
			Status:       models.SubmissionStatusFailed,
			ErrorMessage: "upstream unavailable",
		}
		require.NoError(t, f.db.Create(&submission).Error)
		require.NoError(t, f.db.Model(&models.Submission{}).Where("id = ?", submission.ID).
			UpdateColumn("updated_at", stamp.Add(time.Duration(i)*time.Second)).Error)
		ids = append(ids, submission.ID)
	}
	return ids
}

func TestSweeperRetriesStaleFailuresUpToBatchSize(t *testing.T) {
	f := newSweeperFixture(t, RetrySweeperConfig{StaleAfter: time.Hour, BatchSize: 10})
	ids := f.seedFailedSubmissions(t, 15, 2*time.Hour)

	attempted, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, attempted)

	// The ten oldest recover; the remaining five keep their FAILED state.
	var completed, failed int64
	require.NoError(t, f.db.Model(&models.Submission{}).Where("status = ?", models.SubmissionStatusCompleted).Count(&completed).Error)
	require.NoError(t, f.db.Model(&models.Submission{}).Where("status = ?", models.SubmissionStatusFailed).Count(&failed).Error)
	require.Equal(t, int64(10), completed)
	require.Equal(t, int64(5), failed)

	for _, id := range ids[:10] {
		var submission models.Submission
		require.NoError(t, f.db.First(&submission, id).Error)
		require.Equal(t, models.SubmissionStatusCompleted, submission.Status)
		require.NotNil(t, submission.Score)
		require.Equal(t, 7, *submission.Score)
		require.Empty(t, submission.ErrorMessage)

		// Each retry leaves a completed automatic-retry revision behind.
		var revisions []models.Revision
		require.NoError(t, f.db.Where("submission_id = ?", id).Find(&revisions).Error)
		require.Len(t, revisions, 1)
		require.Equal(t, models.RevisionReasonAutomaticRetry, revisions[0].Reason)
		require.Equal(t, models.RevisionStatusCompleted, revisions[0].Status)
		require.NotNil(t, revisions[0].LatencyMS)
	}
}

func TestSweeperSkipsFreshFailures(t *testing.T) {
	f := newSweeperFixture(t, RetrySweeperConfig{StaleAfter: time.Hour, BatchSize: 10})
	f.seedFailedSubmissions(t, 3, 10*time.Minute)

	attempted, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, attempted)
	require.Zero(t, f.evaluator.callCount())
}

func TestSweeperEmptySweepIsNoOp(t *testing.T) {
	f := newSweeperFixture(t, RetrySweeperConfig{})

	attempted, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, attempted)
}

func TestSweeperFailedRetryStaysFailedWithNewRevision(t *testing.T) {
	f := newSweeperFixture(t, RetrySweeperConfig{StaleAfter: time.Hour, BatchSize: 10})
	f.evaluator.err = ai.ErrEvaluatorUpstream
	ids := f.seedFailedSubmissions(t, 2, 2*time.Hour)

	attempted, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, attempted)

	for _, id := range ids {
		var submission models.Submission
		require.NoError(t, f.db.First(&submission, id).Error)
		require.Equal(t, models.SubmissionStatusFailed, submission.Status)

		var revisions []models.Revision
		require.NoError(t, f.db.Where("submission_id = ?", id).Find(&revisions).Error)
		require.Len(t, revisions, 1)
		require.Equal(t, models.RevisionStatusFailed, revisions[0].Status)
	}

	// One failure notification per submission, and a second sweep leaves the
	// rows alone until they go stale again.
	require.Equal(t, 2, f.notifier.count())

	attempted, err = f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, attempted, "freshly retried failures are not stale yet")
}

func TestSweeperLatencyReadsInjectedClock(t *testing.T) {
	f := newSweeperFixture(t, RetrySweeperConfig{StaleAfter: time.Hour, BatchSize: 10})

	// Freeze the sweeper's clock two days in the past. Both latency reads
	// must come from the same clock, so the recorded value is exactly zero;
	// mixing in the wall clock would record ~48h in milliseconds.
	frozen := time.Now().UTC().Add(-48 * time.Hour)
	f.sweeper.now = func() time.Time { return frozen }

	ids := f.seedFailedSubmissions(t, 1, 72*time.Hour)

	attempted, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, attempted)

	var revision models.Revision
	require.NoError(t, f.db.Where("submission_id = ?", ids[0]).First(&revision).Error)
	require.NotNil(t, revision.LatencyMS)
	require.Zero(t, *revision.LatencyMS)
}

func TestSweeperStartStopsOnContextCancel(t *testing.T) {
	f := newSweeperFixture(t, RetrySweeperConfig{Interval: 10 * time.Millisecond, StaleAfter: time.Hour, BatchSize: 10})
	f.seedFailedSubmissions(t, 1, 2*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	f.sweeper.Start(ctx)

	require.Eventually(t, func() bool {
		var submission models.Submission
		if err := f.db.Where("status = ?", models.SubmissionStatusCompleted).First(&submission).Error; err != nil {
			return false
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
}
