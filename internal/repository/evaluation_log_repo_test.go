package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/essaylab/essay-eval-api/internal/models"
)

func TestEvaluationLogRepositoryListReturnsChronologicalOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationLogRepository(db)
	student := seedStudent(t, db)

	submission := models.Submission{StudentID: student.ID, Title: "E", Text: "T", Category: models.CategoryWriting, Status: models.SubmissionStatusProcessing}
	require.NoError(t, db.Create(&submission).Error)

	entries := []models.EvaluationLog{
		{SubmissionID: submission.ID, Stage: models.StageAIEvaluation, Status: models.StageStatusStarted},
		{SubmissionID: submission.ID, Stage: models.StageAIEvaluation, Status: models.StageStatusSuccess, Response: datatypes.JSONMap{"score": 8}},
		{SubmissionID: submission.ID, Stage: models.StageTextHighlighting, Status: models.StageStatusStarted},
		{SubmissionID: submission.ID, Stage: models.StageTextHighlighting, Status: models.StageStatusSuccess},
	}
	for i := range entries {
		require.NoError(t, repo.Create(context.Background(), &entries[i]))
	}

	// Another submission's entries must not bleed in.
	other := models.Submission{StudentID: student.ID, Title: "S", Text: "T", Category: models.CategorySpeaking, Status: models.SubmissionStatusProcessing}
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, repo.Create(context.Background(), &models.EvaluationLog{SubmissionID: other.ID, Stage: models.StageAIEvaluation, Status: models.StageStatusStarted}))

	logs, err := repo.ListBySubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	require.Equal(t, models.StageStatusStarted, logs[0].Status)
	require.Equal(t, models.StageAIEvaluation, logs[0].Stage)
	require.Equal(t, models.StageTextHighlighting, logs[3].Stage)
	require.Equal(t, models.StageStatusSuccess, logs[3].Status)
}
