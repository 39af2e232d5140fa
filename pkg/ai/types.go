package ai

import (
	"context"
	"errors"
)

// EssayInput carries the submitted content handed to the evaluator.
type EssayInput struct {
	Title    string
	Text     string
	Category string
}

// EssayEvaluation is the structured grading returned by the evaluator. Score is
// an integer on the 0-10 scale; fractional model output is rounded during parsing.
type EssayEvaluation struct {
	Score      int      `json:"score"`
	Feedback   string   `json:"feedback"`
	Highlights []string `json:"highlights"`
}

// Evaluator describes an AI model capable of grading essay submissions.
type Evaluator interface {
	Evaluate(ctx context.Context, input EssayInput) (EssayEvaluation, error)
}

// Classified evaluator failures. The orchestrator surfaces these as the
// submission's error message; it never fabricates a score on any of them.
var (
	ErrMalformedResponse = errors.New("malformed evaluator response")
	ErrEvaluatorTimeout  = errors.New("evaluator timed out")
	ErrEvaluatorAuth     = errors.New("evaluator authentication failed")
	ErrEvaluatorUpstream = errors.New("evaluator request failed")
)
