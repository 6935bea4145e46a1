package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/models"
	"namaste-icd-mapper/utils"
)

const mappingCachePrefix = "map:"

// ResultCache stores mapping responses keyed by the inputs that determine them.
type ResultCache interface {
	GetMapping(ctx context.Context, key string) (*models.MappingResponse, bool)
	SetMapping(ctx context.Context, key string, resp *models.MappingResponse) error
}

// MappingCacheKey identifies a mapping result. The dataset version is part of
// the key so a reload never serves suggestions from the previous corpus.
func MappingCacheKey(model, datasetVersion string, topK int, query string) string {
	return mappingCachePrefix + utils.HashKey(model, datasetVersion, strconv.Itoa(topK), query)
}

// RedisResultCache keeps mapping responses in Redis with a fixed TTL.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisResultCache(client *redis.Client, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{client: client, ttl: ttl}
}

// GetMapping reports a miss for absent keys and for any Redis or decode error.
func (rc *RedisResultCache) GetMapping(ctx context.Context, key string) (*models.MappingResponse, bool) {
	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()

	data, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("Result cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var resp models.MappingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warn("Result cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (rc *RedisResultCache) SetMapping(ctx context.Context, key string, resp *models.MappingResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	ctx, cancel := utils.WithShortTimeout(ctx)
	defer cancel()
	return rc.client.Set(ctx, key, data, rc.ttl).Err()
}
