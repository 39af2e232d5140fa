package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// FailureNotifier is a best-effort side call fired on terminal pipeline
// failure. Implementations must never let their own failure escape: the
// original stage error is what the caller has to see.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, submissionID, studentID uint, message, traceID string)
}

type failureEvent struct {
	SubmissionID uint      `json:"submission_id"`
	StudentID    uint      `json:"student_id"`
	Message      string    `json:"message"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type natsFailureNotifier struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewFailureNotifier publishes failure events to the given NATS subject. A nil
// connection degrades to log-only delivery.
func NewFailureNotifier(conn *nats.Conn, subject string, logger zerolog.Logger) FailureNotifier {
	if subject == "" {
		subject = "essay.evaluation.failed"
	}

	return &natsFailureNotifier{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "failure_notifier").Logger(),
	}
}

func (n *natsFailureNotifier) NotifyFailure(ctx context.Context, submissionID, studentID uint, message, traceID string) {
	event := failureEvent{
		SubmissionID: submissionID,
		StudentID:    studentID,
		Message:      message,
		TraceID:      traceID,
		OccurredAt:   time.Now().UTC(),
	}

	log := n.logger.With().
		Uint("submission_id", submissionID).
		Uint("student_id", studentID).
		Str("trace_id", traceID).
		Logger()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode failure event")
		return
	}

	if n.conn == nil {
		log.Warn().Str("message", message).Msg("evaluation failed")
		return
	}

	if err := n.conn.Publish(n.subject, payload); err != nil {
		log.Warn().Err(err).Msg("failed to publish failure event")
	}
}
