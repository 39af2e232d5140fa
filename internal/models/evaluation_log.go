package models

import (
	"time"

	"gorm.io/datatypes"
)

// EvaluationLog is an append-only audit record for one pipeline stage attempt.
type EvaluationLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	SubmissionID uint              `gorm:"not null;index" json:"submission_id"`
	Stage        string            `gorm:"size:32;not null" json:"stage"`
	Status       string            `gorm:"size:16;not null" json:"status"`
	LatencyMS    int64             `json:"latency_ms"`
	Request      datatypes.JSONMap `json:"request"`
	Response     datatypes.JSONMap `json:"response"`
	ErrorMessage string            `gorm:"type:text" json:"error_message"`
	TraceID      string            `gorm:"size:64" json:"trace_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Submission   Submission        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

const (
	// StageVideoProcessing covers the raw-video to silent-video/audio transform.
	StageVideoProcessing = "VIDEO_PROCESSING"
	// StageBlobUpload covers durable storage of the processed media files.
	StageBlobUpload = "BLOB_UPLOAD"
	// StageAIEvaluation covers the language-model scoring call.
	StageAIEvaluation = "AI_EVALUATION"
	// StageTextHighlighting covers wrapping evaluator phrases in the source text.
	StageTextHighlighting = "TEXT_HIGHLIGHTING"
)

const (
	// StageStatusStarted records that a stage was entered.
	StageStatusStarted = "STARTED"
	// StageStatusSuccess records a completed stage with its latency.
	StageStatusSuccess = "SUCCESS"
	// StageStatusFailed records an aborted stage with its error.
	StageStatusFailed = "FAILED"
)
