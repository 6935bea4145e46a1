package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "hash", cfg.EmbeddingsProvider)
	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, 0.85, cfg.HighConfidenceThreshold)
	assert.Equal(t, 0.70, cfg.MediumConfidenceThreshold)
	assert.Equal(t, 0.70, cfg.RecommendHighThreshold)
	assert.Equal(t, 0.50, cfg.RecommendMediumThreshold)
	assert.Equal(t, 30*time.Second, cfg.EmbedTimeout)
	assert.Equal(t, "file", cfg.FeedbackBackend)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("EMBED_TIMEOUT", "5")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("HIGH_CONFIDENCE_THRESHOLD", "0.9")
	t.Setenv("CORS_ORIGINS", "http://a.example,http://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.EmbedTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0.9, cfg.HighConfidenceThreshold)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfig_ProviderDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EMBEDDINGS_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-004", cfg.ModelName)
	assert.Equal(t, 768, cfg.EmbeddingDim)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"gemini without key", map[string]string{"EMBEDDINGS_PROVIDER": "gemini"}},
		{"unknown provider", map[string]string{"EMBEDDINGS_PROVIDER": "word2vec"}},
		{"inverted thresholds", map[string]string{"MEDIUM_CONFIDENCE_THRESHOLD": "0.9"}},
		{"threshold out of range", map[string]string{"HIGH_CONFIDENCE_THRESHOLD": "1.5"}},
		{"unknown feedback backend", map[string]string{"FEEDBACK_BACKEND": "sqlite"}},
		{"top k out of range", map[string]string{"TOP_K_RESULTS": "11"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
