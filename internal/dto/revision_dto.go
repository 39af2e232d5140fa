package dto

import (
	"time"

	"github.com/essaylab/essay-eval-api/internal/models"
)

// RevisionCreateRequest asks for a re-evaluation of an existing submission.
type RevisionCreateRequest struct {
	SubmissionID uint   `json:"submission_id" validate:"required,gt=0"`
	Reason       string `json:"reason" validate:"omitempty,max=512"`
}

// RevisionListQuery describes pagination and ordering for revision listings.
type RevisionListQuery struct {
	Page      int    `query:"page" validate:"omitempty,gte=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
	SortField string `query:"sort" validate:"omitempty,oneof=id created_at updated_at status"`
	Direction string `query:"direction" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// RevisionResponse serializes a revision row.
type RevisionResponse struct {
	ID              uint      `json:"id"`
	SubmissionID    uint      `json:"submission_id"`
	StudentID       uint      `json:"student_id"`
	Category        string    `json:"category"`
	Reason          string    `json:"reason,omitempty"`
	Status          string    `json:"status"`
	Score           *int      `json:"score"`
	Feedback        string    `json:"feedback,omitempty"`
	Highlights      []string  `json:"highlights,omitempty"`
	HighlightedText string    `json:"highlighted_text,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	LatencyMS       *int64    `json:"latency_ms,omitempty"`
	TraceID         string    `json:"trace_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RevisionListResponse is the paginated envelope around revision listings.
type RevisionListResponse struct {
	Items      []RevisionResponse `json:"items"`
	Total      int64              `json:"total"`
	TotalPages int                `json:"total_pages"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}

// NewRevisionResponse maps a revision row onto its API shape.
func NewRevisionResponse(revision models.Revision) RevisionResponse {
	return RevisionResponse{
		ID:              revision.ID,
		SubmissionID:    revision.SubmissionID,
		StudentID:       revision.StudentID,
		Category:        revision.Category,
		Reason:          revision.Reason,
		Status:          revision.Status,
		Score:           revision.Score,
		Feedback:        revision.Feedback,
		Highlights:      revision.Highlights,
		HighlightedText: revision.HighlightedText,
		ErrorMessage:    revision.ErrorMessage,
		LatencyMS:       revision.LatencyMS,
		TraceID:         revision.TraceID,
		CreatedAt:       revision.CreatedAt,
		UpdatedAt:       revision.UpdatedAt,
	}
}

// NewRevisionResponseSlice maps a batch of revisions.
func NewRevisionResponseSlice(revisions []models.Revision) []RevisionResponse {
	responses := make([]RevisionResponse, 0, len(revisions))
	for _, revision := range revisions {
		responses = append(responses, NewRevisionResponse(revision))
	}
	return responses
}
