package dto

import (
	"time"

	"github.com/essaylab/essay-eval-api/internal/models"
)

// SubmissionCreateRequest describes the multipart payload for an essay submission.
// The optional video part is read separately by the handler.
type SubmissionCreateRequest struct {
	Title    string `form:"title" validate:"required,min=1,max=256"`
	Text     string `form:"text" validate:"required,min=1"`
	Category string `form:"category" validate:"required,oneof=WRITING SPEAKING READING"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID              uint      `json:"id"`
	StudentID       uint      `json:"student_id"`
	Title           string    `json:"title"`
	Text            string    `json:"text"`
	Category        string    `json:"category"`
	Status          string    `json:"status"`
	Score           *int      `json:"score"`
	Feedback        string    `json:"feedback"`
	Highlights      []string  `json:"highlights"`
	HighlightedText string    `json:"highlighted_text"`
	VideoURL        string    `json:"video_url,omitempty"`
	AudioURL        string    `json:"audio_url,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	LatencyMS       int64     `json:"latency_ms,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSubmissionResponse maps a submission row onto its API shape.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:              submission.ID,
		StudentID:       submission.StudentID,
		Title:           submission.Title,
		Text:            submission.Text,
		Category:        submission.Category,
		Status:          submission.Status,
		Score:           submission.Score,
		Feedback:        submission.Feedback,
		Highlights:      submission.Highlights,
		HighlightedText: submission.HighlightedText,
		VideoURL:        submission.VideoURL,
		AudioURL:        submission.AudioURL,
		ErrorMessage:    submission.ErrorMessage,
		CreatedAt:       submission.CreatedAt,
		UpdatedAt:       submission.UpdatedAt,
	}
}

// NewSubmissionResponseSlice maps a batch of submissions.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
