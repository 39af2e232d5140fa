package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/essaylab/essay-eval-api/internal/models"
)

var testDBSeq int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Submission{}, &models.EvaluationLog{}, &models.Revision{}))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB) models.Student {
	t.Helper()
	student := models.Student{Name: "Jordan", Email: fmt.Sprintf("jordan%d@example.com", atomic.AddInt64(&testDBSeq, 1))}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func TestSubmissionRepositoryCreateIfNewRejectsDuplicateCategory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	student := seedStudent(t, db)

	first := models.Submission{
		StudentID: student.ID,
		Title:     "My Favorite Food",
		Text:      "I like pizza.",
		Category:  models.CategoryWriting,
		Status:    models.SubmissionStatusPending,
	}
	require.NoError(t, repo.CreateIfNew(context.Background(), &first))
	require.NotZero(t, first.ID)

	duplicate := models.Submission{
		StudentID: student.ID,
		Title:     "Another Essay",
		Text:      "Different text entirely.",
		Category:  models.CategoryWriting,
		Status:    models.SubmissionStatusPending,
	}
	err := repo.CreateIfNew(context.Background(), &duplicate)
	require.ErrorIs(t, err, ErrSubmissionExists)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "the duplicate must not leave a row behind")

	// A different category for the same student is a fresh slot.
	speaking := models.Submission{
		StudentID: student.ID,
		Title:     "Speech",
		Text:      "Hello everyone.",
		Category:  models.CategorySpeaking,
		Status:    models.SubmissionStatusPending,
	}
	require.NoError(t, repo.CreateIfNew(context.Background(), &speaking))
}

func TestSubmissionRepositoryListFailedBeforeHonoursCutoffAndLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	student := seedStudent(t, db)

	now := time.Now().UTC()
	categories := []string{models.CategoryWriting, models.CategorySpeaking, models.CategoryReading}

	// Three failed submissions with staggered ages plus one recent failure and
	// one stale success.
	staleIDs := make([]uint, 0, 3)
	for i, category := range categories {
		submission := models.Submission{
			StudentID: student.ID,
			Title:     "Essay",
			Text:      "Text",
			Category:  category,
			Status:    models.SubmissionStatusFailed,
		}
		require.NoError(t, db.Create(&submission).Error)
		age := now.Add(-time.Duration(2+i) * time.Hour)
		require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", submission.ID).
			UpdateColumn("updated_at", age).Error)
		staleIDs = append(staleIDs, submission.ID)
	}

	other := seedStudent(t, db)
	recent := models.Submission{StudentID: other.ID, Title: "E", Text: "T", Category: models.CategoryWriting, Status: models.SubmissionStatusFailed}
	require.NoError(t, db.Create(&recent).Error)

	completed := models.Submission{StudentID: other.ID, Title: "E", Text: "T", Category: models.CategorySpeaking, Status: models.SubmissionStatusCompleted}
	require.NoError(t, db.Create(&completed).Error)
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", completed.ID).
		UpdateColumn("updated_at", now.Add(-3*time.Hour)).Error)

	cutoff := now.Add(-time.Hour)
	stale, err := repo.ListFailedBefore(context.Background(), cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stale, 3)
	// Oldest first.
	require.Equal(t, staleIDs[2], stale[0].ID)
	require.Equal(t, staleIDs[1], stale[1].ID)
	require.Equal(t, staleIDs[0], stale[2].ID)

	limited, err := repo.ListFailedBefore(context.Background(), cutoff, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, staleIDs[2], limited[0].ID)
}

func TestSubmissionRepositoryUpdateFieldsMissingRowReturnsNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)

	err := repo.UpdateFields(context.Background(), 9999, map[string]interface{}{"status": models.SubmissionStatusCompleted})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryDeleteCascadeRemovesChildren(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	student := seedStudent(t, db)

	submission := models.Submission{StudentID: student.ID, Title: "E", Text: "T", Category: models.CategoryWriting, Status: models.SubmissionStatusCompleted}
	require.NoError(t, db.Create(&submission).Error)

	log := models.EvaluationLog{SubmissionID: submission.ID, Stage: models.StageAIEvaluation, Status: models.StageStatusSuccess}
	require.NoError(t, db.Create(&log).Error)
	revision := models.Revision{SubmissionID: submission.ID, StudentID: student.ID, Category: submission.Category, Status: models.RevisionStatusCompleted}
	require.NoError(t, db.Create(&revision).Error)

	require.NoError(t, repo.DeleteCascade(context.Background(), submission.ID))

	var logs, revisions, submissions int64
	require.NoError(t, db.Model(&models.EvaluationLog{}).Where("submission_id = ?", submission.ID).Count(&logs).Error)
	require.NoError(t, db.Model(&models.Revision{}).Where("submission_id = ?", submission.ID).Count(&revisions).Error)
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", submission.ID).Count(&submissions).Error)
	require.Zero(t, logs)
	require.Zero(t, revisions)
	require.Zero(t, submissions)

	require.ErrorIs(t, repo.DeleteCascade(context.Background(), submission.ID), gorm.ErrRecordNotFound)
}
