package models

import (
	"time"

	"gorm.io/datatypes"
)

// Revision is a re-evaluation attempt against an existing submission. Student and
// category are denormalized so revision listings never need a join.
type Revision struct {
	ID              uint                       `gorm:"primaryKey" json:"id"`
	SubmissionID    uint                       `gorm:"not null;index" json:"submission_id"`
	StudentID       uint                       `gorm:"not null;index" json:"student_id"`
	Category        string                     `gorm:"size:32;not null" json:"category"`
	Reason          string                     `gorm:"size:512" json:"reason"`
	Status          string                     `gorm:"size:32;not null" json:"status"`
	Score           *int                       `json:"score"`
	Feedback        string                     `gorm:"type:text" json:"feedback"`
	Highlights      datatypes.JSONSlice[string] `json:"highlights"`
	HighlightedText string                     `gorm:"type:text" json:"highlighted_text"`
	ErrorMessage    string                     `gorm:"type:text" json:"error_message"`
	LatencyMS       *int64                     `json:"latency_ms"`
	TraceID         string                     `gorm:"size:64" json:"trace_id"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	Submission      Submission                 `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

const (
	// RevisionStatusPending indicates the revision row exists but processing has not started.
	RevisionStatusPending = "PENDING"
	// RevisionStatusInProgress indicates the re-evaluation pipeline is running.
	RevisionStatusInProgress = "IN_PROGRESS"
	// RevisionStatusCompleted indicates the re-evaluation finished and was copied back.
	RevisionStatusCompleted = "COMPLETED"
	// RevisionStatusFailed indicates the re-evaluation failed; the parent submission is untouched.
	RevisionStatusFailed = "FAILED"
)

// RevisionReasonAutomaticRetry tags revision rows created by the system itself,
// either by the retry sweeper or by the submit pipeline on terminal failure.
const RevisionReasonAutomaticRetry = "automatic retry"
