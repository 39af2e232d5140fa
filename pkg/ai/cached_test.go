package ai

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingEvaluator struct {
	calls  int
	result EssayEvaluation
	err    error
}

func (e *countingEvaluator) Evaluate(context.Context, EssayInput) (EssayEvaluation, error) {
	e.calls++
	if e.err != nil {
		return EssayEvaluation{}, e.err
	}
	return e.result, nil
}

func newCacheTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	return redis.NewClient(&redis.Options{Addr: mini.Addr()})
}

func TestCachedEvaluatorReturnsCachedResultOnRepeat(t *testing.T) {
	inner := &countingEvaluator{result: EssayEvaluation{Score: 8, Feedback: "solid", Highlights: []string{"like pizza"}}}
	cached := NewCachedEvaluator(inner, newCacheTestClient(t), time.Hour, zerolog.Nop())

	input := EssayInput{Title: "My Favorite Food", Text: "I like pizza.", Category: "WRITING"}

	first, err := cached.Evaluate(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 8, first.Score)
	require.Equal(t, 1, inner.calls)

	second, err := cached.Evaluate(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls, "cache hit must not call the inner evaluator")
}

func TestCachedEvaluatorKeyIgnoresTitle(t *testing.T) {
	inner := &countingEvaluator{result: EssayEvaluation{Score: 6, Feedback: "fine"}}
	cached := NewCachedEvaluator(inner, newCacheTestClient(t), time.Hour, zerolog.Nop())

	base := EssayInput{Title: "Original Title", Text: "Same essay text.", Category: "WRITING"}
	_, err := cached.Evaluate(context.Background(), base)
	require.NoError(t, err)

	retitled := base
	retitled.Title = "A Completely Different Title"
	_, err = cached.Evaluate(context.Background(), retitled)
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls, "same text and category must hit the cache regardless of title")
}

func TestCachedEvaluatorKeyVariesWithCategoryAndText(t *testing.T) {
	inner := &countingEvaluator{result: EssayEvaluation{Score: 6, Feedback: "fine"}}
	cached := NewCachedEvaluator(inner, newCacheTestClient(t), time.Hour, zerolog.Nop())

	base := EssayInput{Title: "T", Text: "Same essay text.", Category: "WRITING"}
	_, err := cached.Evaluate(context.Background(), base)
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	other := base
	other.Category = "SPEAKING"
	_, err = cached.Evaluate(context.Background(), other)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)

	edited := base
	edited.Text = "Edited essay text."
	_, err = cached.Evaluate(context.Background(), edited)
	require.NoError(t, err)
	require.Equal(t, 3, inner.calls)
}

func TestCachedEvaluatorDoesNotCacheFailures(t *testing.T) {
	inner := &countingEvaluator{err: ErrEvaluatorUpstream}
	cached := NewCachedEvaluator(inner, newCacheTestClient(t), time.Hour, zerolog.Nop())

	input := EssayInput{Text: "Essay.", Category: "WRITING"}

	_, err := cached.Evaluate(context.Background(), input)
	require.ErrorIs(t, err, ErrEvaluatorUpstream)

	_, err = cached.Evaluate(context.Background(), input)
	require.ErrorIs(t, err, ErrEvaluatorUpstream)
	require.Equal(t, 2, inner.calls, "errors must reach the inner evaluator every time")
}

func TestCachedEvaluatorNilClientPassesThrough(t *testing.T) {
	inner := &countingEvaluator{result: EssayEvaluation{Score: 5}}
	cached := NewCachedEvaluator(inner, nil, time.Hour, zerolog.Nop())

	input := EssayInput{Text: "Essay.", Category: "READING"}
	for i := 0; i < 2; i++ {
		result, err := cached.Evaluate(context.Background(), input)
		require.NoError(t, err)
		require.Equal(t, 5, result.Score)
	}
	require.Equal(t, 2, inner.calls)
}
