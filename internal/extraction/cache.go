package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"plantao-pipeline/internal/logging"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

const cacheKeyPrefix = "plantao:extraction:"

// CachingExtractor wraps another extractor with a redis cache keyed by the
// message content and the reference date, so identical text is never paid
// for twice within the TTL. The reference date is part of the key because
// relative dates resolve differently on different days.
type CachingExtractor struct {
	inner  Extractor
	redis  *utils.RedisClient
	ttl    time.Duration
	logger logging.Logger
}

// NewCachingExtractor creates a caching wrapper around inner.
func NewCachingExtractor(inner Extractor, redisClient *utils.RedisClient, ttl time.Duration) *CachingExtractor {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachingExtractor{
		inner:  inner,
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.GetGlobalLogger(),
	}
}

// Extract returns the cached result when present, otherwise delegates to
// the wrapped extractor and stores its result. Cache failures are logged
// and bypassed, never surfaced.
func (c *CachingExtractor) Extract(ctx context.Context, msg *models.RawMessage, referenceDate time.Time) (*models.ExtractionResult, error) {
	key := CacheKey(msg.Text, referenceDate)

	var cached models.ExtractionResult
	found, err := c.redis.GetJSON(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("Extraction cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	} else if found {
		c.logger.Debug("Extraction cache hit", map[string]interface{}{
			"key":      key,
			"strategy": cached.Strategy,
		})
		return &cached, nil
	}

	result, err := c.inner.Extract(ctx, msg, referenceDate)
	if err != nil {
		return nil, err
	}

	if err := c.redis.SetJSON(ctx, key, result, c.ttl); err != nil {
		c.logger.Warn("Extraction cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	return result, nil
}

// StrategyName returns the wrapped extractor's strategy name.
func (c *CachingExtractor) StrategyName() string {
	return c.inner.StrategyName()
}

// CacheKey derives the content-addressed cache key for a message text and
// reference date. The text is normalized first so trivial whitespace or
// casing differences share one entry.
func CacheKey(text string, referenceDate time.Time) string {
	payload := fmt.Sprintf("%s|%s", utils.NormalizeText(text), referenceDate.Format("2006-01-02"))
	sum := sha256.Sum256([]byte(payload))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
