package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedEvaluator decorates an Evaluator with a Redis response cache so
// identical content is never graded twice within the TTL. The key is derived
// from text and category only; the title is deliberately excluded because
// grading depends solely on the submitted content and its category.
type CachedEvaluator struct {
	inner  Evaluator
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedEvaluator wraps inner with a response cache. A nil client disables
// caching and calls pass straight through.
func NewCachedEvaluator(inner Evaluator, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedEvaluator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &CachedEvaluator{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "ai_cache").Logger(),
	}
}

// Evaluate returns a cached grading when one exists for the same text and
// category, otherwise calls the wrapped evaluator and stores the result.
// Concurrent misses may both compute and overwrite with equal results; that
// race is benign and not guarded against.
func (c *CachedEvaluator) Evaluate(ctx context.Context, input EssayInput) (EssayEvaluation, error) {
	if c.cache == nil {
		return c.inner.Evaluate(ctx, input)
	}

	key := cacheKey(input)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		var result EssayEvaluation
		if unmarshalErr := json.Unmarshal([]byte(cached), &result); unmarshalErr == nil {
			c.logger.Debug().Str("category", input.Category).Msg("evaluation cache hit")
			return result, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Msg("failed to read evaluation cache")
	}

	result, err := c.inner.Evaluate(ctx, input)
	if err != nil {
		return EssayEvaluation{}, err
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to store evaluation cache")
		}
	}

	return result, nil
}

func cacheKey(input EssayInput) string {
	digest := sha256.Sum256([]byte(input.Text + "\x00" + input.Category))
	return fmt.Sprintf("ai:evaluation:%s", hex.EncodeToString(digest[:]))
}
