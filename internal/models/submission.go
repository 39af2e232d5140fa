package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is a single essay/speech/reading attempt and the result of its evaluation.
type Submission struct {
	ID              uint                       `gorm:"primaryKey" json:"id"`
	StudentID       uint                       `gorm:"not null;uniqueIndex:idx_submissions_student_category" json:"student_id"`
	Title           string                     `gorm:"size:256;not null" json:"title"`
	Text            string                     `gorm:"type:text;not null" json:"text"`
	Category        string                     `gorm:"size:32;not null;uniqueIndex:idx_submissions_student_category" json:"category"`
	Status          string                     `gorm:"size:32;not null" json:"status"`
	Score           *int                       `json:"score"`
	Feedback        string                     `gorm:"type:text" json:"feedback"`
	Highlights      datatypes.JSONSlice[string] `json:"highlights"`
	HighlightedText string                     `gorm:"type:text" json:"highlighted_text"`
	VideoURL        string                     `gorm:"size:512" json:"video_url"`
	AudioURL        string                     `gorm:"size:512" json:"audio_url"`
	ErrorMessage    string                     `gorm:"type:text" json:"error_message"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	Student         Student                    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

const (
	// SubmissionStatusPending indicates the row exists but evaluation has not started.
	SubmissionStatusPending = "PENDING"
	// SubmissionStatusProcessing indicates the evaluation pipeline is running.
	SubmissionStatusProcessing = "PROCESSING"
	// SubmissionStatusCompleted indicates the evaluation finished successfully.
	SubmissionStatusCompleted = "COMPLETED"
	// SubmissionStatusFailed indicates a pipeline stage failed.
	SubmissionStatusFailed = "FAILED"
)

const (
	// CategoryWriting marks a written essay submission.
	CategoryWriting = "WRITING"
	// CategorySpeaking marks a recorded speaking submission.
	CategorySpeaking = "SPEAKING"
	// CategoryReading marks a reading-comprehension submission.
	CategoryReading = "READING"
)

// IsTerminal reports whether the submission reached a final state.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusCompleted || s.Status == SubmissionStatusFailed
}
