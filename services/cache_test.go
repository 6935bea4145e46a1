package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namaste-icd-mapper/models"
)

func TestRedisResultCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisResultCache(client, time.Minute)
	key := MappingCacheKey("test", "v1", 5, time.Now().String())
	defer client.Del(ctx, key)

	_, ok := cache.GetMapping(ctx, key)
	assert.False(t, ok)

	resp := &models.MappingResponse{
		NamasteCode: "A-1",
		DiseaseName: "Jwara",
		Suggestions: []models.Suggestion{{ICDCode: "1D01", Confidence: 0.91, ConfidenceLevel: "high"}},
		Timestamp:   time.Now().UTC(),
	}
	require.NoError(t, cache.SetMapping(ctx, key, resp))

	got, ok := cache.GetMapping(ctx, key)
	require.True(t, ok)
	assert.Equal(t, resp.Suggestions, got.Suggestions)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
