package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIEvaluatorRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEvaluator(OpenAIConfig{})
	require.Error(t, err)

	evaluator, err := NewOpenAIEvaluator(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	require.NotNil(t, evaluator)
}

func TestParseEvaluationAcceptsWellFormedResponse(t *testing.T) {
	content := `{"score": 8, "feedback": "Good structure.", "highlights": ["like pizza", "every day"]}`

	result, err := parseEvaluation(content)
	require.NoError(t, err)
	require.Equal(t, 8, result.Score)
	require.Equal(t, "Good structure.", result.Feedback)
	require.Equal(t, []string{"like pizza", "every day"}, result.Highlights)
}

func TestParseEvaluationRoundsFractionalScores(t *testing.T) {
	result, err := parseEvaluation(`{"score": 7.6, "feedback": "ok", "highlights": []}`)
	require.NoError(t, err)
	require.Equal(t, 8, result.Score)

	result, err = parseEvaluation(`{"score": 7.4, "feedback": "ok", "highlights": []}`)
	require.NoError(t, err)
	require.Equal(t, 7, result.Score)
}

func TestParseEvaluationRejectsOutOfRangeScores(t *testing.T) {
	for _, content := range []string{
		`{"score": 11, "feedback": "ok", "highlights": []}`,
		`{"score": -1, "feedback": "ok", "highlights": []}`,
		`{"score": 10.6, "feedback": "ok", "highlights": []}`,
	} {
		_, err := parseEvaluation(content)
		require.ErrorIs(t, err, ErrMalformedResponse, content)
	}
}

func TestParseEvaluationAcceptsRangeEndpoints(t *testing.T) {
	result, err := parseEvaluation(`{"score": 0, "feedback": "weak", "highlights": []}`)
	require.NoError(t, err)
	require.Equal(t, 0, result.Score)

	result, err = parseEvaluation(`{"score": 10, "feedback": "perfect", "highlights": []}`)
	require.NoError(t, err)
	require.Equal(t, 10, result.Score)
}

func TestParseEvaluationRejectsMissingFields(t *testing.T) {
	for _, content := range []string{
		`{"feedback": "ok", "highlights": []}`,
		`{"score": 5, "highlights": []}`,
		`{"score": 5, "feedback": "ok"}`,
		`{"score": "five", "feedback": "ok", "highlights": []}`,
		`{"score": 5, "feedback": "ok", "highlights": [1, 2]}`,
	} {
		_, err := parseEvaluation(content)
		require.ErrorIs(t, err, ErrMalformedResponse, content)
	}
}

func TestParseEvaluationRejectsNonJSON(t *testing.T) {
	_, err := parseEvaluation("The essay deserves an 8 out of 10.")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClassifyTransportError(t *testing.T) {
	timeout := fmt.Errorf("request: %w", context.DeadlineExceeded)
	require.ErrorIs(t, classifyTransportError(timeout), ErrEvaluatorTimeout)

	unauthorized := &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}
	require.ErrorIs(t, classifyTransportError(unauthorized), ErrEvaluatorAuth)

	forbidden := &openai.APIError{HTTPStatusCode: http.StatusForbidden}
	require.ErrorIs(t, classifyTransportError(forbidden), ErrEvaluatorAuth)

	rateLimited := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}
	require.ErrorIs(t, classifyTransportError(rateLimited), ErrEvaluatorUpstream)

	require.ErrorIs(t, classifyTransportError(errors.New("connection refused")), ErrEvaluatorUpstream)
}
