package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "essay",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of AI evaluation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of AI evaluation failures",
	}, []string{"model"})
)

// evaluationSchema pins the response contract: anything that does not satisfy it
// is a malformed-response failure, never a silently coerced score.
var evaluationSchema = jsonschema.MustCompileString("evaluation.json", `{
	"type": "object",
	"required": ["score", "feedback", "highlights"],
	"properties": {
		"score": {"type": "number"},
		"feedback": {"type": "string"},
		"highlights": {"type": "array", "items": {"type": "string"}}
	}
}`)

// OpenAIConfig defines configuration options for the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	tracer := otel.Tracer("github.com/essaylab/essay-eval-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIEvaluator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Evaluate sends the grading request to OpenAI and parses the response.
func (e *OpenAIEvaluator) Evaluate(parent context.Context, input EssayInput) (EssayEvaluation, error) {
	ctx, span := e.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.String("category", input.Category),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: examinerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(e.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		classified := classifyTransportError(err)
		aiFailures.WithLabelValues(e.cfg.Model).Inc()
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Error())
		return EssayEvaluation{}, classified
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
		aiFailures.WithLabelValues(e.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EssayEvaluation{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseEvaluation(content)
	if err != nil {
		aiFailures.WithLabelValues(e.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EssayEvaluation{}, err
	}

	return result, nil
}

func examinerSystemPrompt() string {
	return "You are an automated English essay examiner. Respond with a JSON object containing score (an integer from 0 to 10), " +
		"feedback (a short paragraph on organization, grammar, and vocabulary), and highlights (an array of short phrases " +
		"quoted verbatim from the essay that justify the score)."
}

func buildUserPrompt(input EssayInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Category\n")
	builder.WriteString(input.Category)
	builder.WriteString("\n\n## Title\n")
	builder.WriteString(input.Title)
	builder.WriteString("\n\n## Essay\n")
	builder.WriteString(input.Text)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

// parseEvaluation validates the raw model output against the response schema
// and enforces the 0-10 score range. In-range fractional scores are rounded to
// the nearest integer; out-of-range scores are rejected as malformed.
func parseEvaluation(content string) (EssayEvaluation, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return EssayEvaluation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := evaluationSchema.Validate(raw); err != nil {
		return EssayEvaluation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var payload struct {
		Score      float64  `json:"score"`
		Feedback   string   `json:"feedback"`
		Highlights []string `json:"highlights"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return EssayEvaluation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if payload.Score < 0 || payload.Score > 10 {
		return EssayEvaluation{}, fmt.Errorf("%w: score %.2f outside [0,10]", ErrMalformedResponse, payload.Score)
	}

	return EssayEvaluation{
		Score:      int(math.Round(payload.Score)),
		Feedback:   payload.Feedback,
		Highlights: payload.Highlights,
	}, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrEvaluatorTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrEvaluatorAuth, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrEvaluatorUpstream, err)
}
