package extraction

import (
	"fmt"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/internal/llm"
	"plantao-pipeline/pkg/utils"
)

// NewExtractor builds the extractor selected by configuration, wrapped in
// the redis result cache when a redis client is available.
func NewExtractor(cfg *config.Config, dict *dictionary.Dictionary, manager *llm.Manager, redisClient *utils.RedisClient) (Extractor, error) {
	var inner Extractor

	switch cfg.Extraction.Strategy {
	case "composed", "":
		inner = NewComposedExtractor(dict)
	case "unified":
		if manager == nil {
			return nil, fmt.Errorf("unified extraction strategy requires an LLM manager")
		}
		inner = NewUnifiedExtractor(manager)
	default:
		return nil, fmt.Errorf("unsupported extraction strategy: %s", cfg.Extraction.Strategy)
	}

	if redisClient != nil {
		return NewCachingExtractor(inner, redisClient, cfg.Extraction.CacheTTL), nil
	}
	return inner, nil
}
