package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/essaylab/essay-eval-api/internal/highlight"
	"github.com/essaylab/essay-eval-api/internal/models"
	"github.com/essaylab/essay-eval-api/internal/observability"
	"github.com/essaylab/essay-eval-api/internal/repository"
	"github.com/essaylab/essay-eval-api/pkg/ai"
)

// stageRecorder appends STARTED/SUCCESS/FAILED audit entries around each
// pipeline stage. The logging pattern is written once here instead of being
// repeated per stage. Audit write failures are warn-logged and never abort the
// pipeline they describe.
type stageRecorder struct {
	logs   repository.EvaluationLogRepository
	logger zerolog.Logger
}

func newStageRecorder(logs repository.EvaluationLogRepository, logger zerolog.Logger) *stageRecorder {
	return &stageRecorder{
		logs:   logs,
		logger: logger.With().Str("component", "stage_recorder").Logger(),
	}
}

// run executes fn between a STARTED entry and its mandatory SUCCESS or FAILED
// companion, capturing latency and payload snapshots.
func (r *stageRecorder) run(ctx context.Context, submissionID uint, stage, traceID string, request map[string]interface{}, fn func(context.Context) (map[string]interface{}, error)) error {
	r.append(ctx, submissionID, stage, models.StageStatusStarted, traceID, 0, request, nil, "")

	start := time.Now()
	response, err := fn(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		r.append(ctx, submissionID, stage, models.StageStatusFailed, traceID, latency, request, nil, err.Error())
		observability.PipelineStageFailures().WithLabelValues(stage).Inc()
		return err
	}

	r.append(ctx, submissionID, stage, models.StageStatusSuccess, traceID, latency, request, response, "")
	observability.PipelineStageLatency().WithLabelValues(stage).Observe(float64(latency) / 1000)
	return nil
}

func (r *stageRecorder) append(ctx context.Context, submissionID uint, stage, status, traceID string, latency int64, request, response map[string]interface{}, errMsg string) {
	entry := models.EvaluationLog{
		SubmissionID: submissionID,
		Stage:        stage,
		Status:       status,
		LatencyMS:    latency,
		Request:      datatypes.JSONMap(request),
		Response:     datatypes.JSONMap(response),
		ErrorMessage: errMsg,
		TraceID:      traceID,
	}

	if err := r.logs.Create(ctx, &entry); err != nil {
		r.logger.Warn().Err(err).
			Uint("submission_id", submissionID).
			Str("stage", stage).
			Str("status", status).
			Msg("failed to append evaluation log")
	}
}

// evaluationOutcome carries the grading produced by the shared AI + highlight
// stage pair.
type evaluationOutcome struct {
	Score           int
	Feedback        string
	Highlights      []string
	HighlightedText string
}

// evaluationPipeline runs the two stages every entry point shares: the initial
// submit flow, on-demand revisions, and sweeper retries all re-enter it.
type evaluationPipeline struct {
	evaluator ai.Evaluator
	stages    *stageRecorder
}

func newEvaluationPipeline(evaluator ai.Evaluator, stages *stageRecorder) *evaluationPipeline {
	return &evaluationPipeline{evaluator: evaluator, stages: stages}
}

func (p *evaluationPipeline) run(ctx context.Context, submissionID uint, traceID, title, text, category string) (evaluationOutcome, error) {
	var evaluation ai.EssayEvaluation
	err := p.stages.run(ctx, submissionID, models.StageAIEvaluation, traceID,
		map[string]interface{}{"title": title, "category": category, "text_length": len(text)},
		func(stageCtx context.Context) (map[string]interface{}, error) {
			result, err := p.evaluator.Evaluate(stageCtx, ai.EssayInput{Title: title, Text: text, Category: category})
			if err != nil {
				return nil, err
			}
			evaluation = result
			return map[string]interface{}{
				"score":           result.Score,
				"feedback":        result.Feedback,
				"highlight_count": len(result.Highlights),
			}, nil
		})
	if err != nil {
		return evaluationOutcome{}, err
	}

	var highlighted string
	err = p.stages.run(ctx, submissionID, models.StageTextHighlighting, traceID,
		map[string]interface{}{"highlight_count": len(evaluation.Highlights)},
		func(context.Context) (map[string]interface{}, error) {
			highlighted = highlight.Apply(text, evaluation.Highlights)
			return map[string]interface{}{"highlighted_length": len(highlighted)}, nil
		})
	if err != nil {
		return evaluationOutcome{}, err
	}

	return evaluationOutcome{
		Score:           evaluation.Score,
		Feedback:        evaluation.Feedback,
		Highlights:      evaluation.Highlights,
		HighlightedText: highlighted,
	}, nil
}
