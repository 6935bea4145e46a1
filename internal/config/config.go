package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	APIPrefix      string
	CORSOrigins    []string
	MaxRequestSize int64

	// Datasets
	NamasteDataPath  string
	ICD11DataPath    string
	FeedbackDataPath string
	FeedbackBackend  string // "file" (default), "mongo"
	ExportDir        string

	// MongoDB (feedback backend)
	MongoURI string
	DBName   string

	// Embeddings configuration
	EmbeddingsProvider string // "hash" (default), "gemini", "onnx"
	ModelName          string
	EmbeddingDim       int
	GeminiAPIKey       string
	GeminiRPM          int
	OrtLibraryPath     string
	OnnxModelPath      string
	TokenizerPath      string
	MaxSeqLen          int
	EmbedBatchSize     int
	EmbedConcurrency   int
	EmbedTimeout       time.Duration
	EmbeddingCachePath string

	// Confidence thresholds
	HighConfidenceThreshold   float64
	MediumConfidenceThreshold float64
	RecommendHighThreshold    float64
	RecommendMediumThreshold  float64
	RecommendPrecompute       bool
	TopKResults               int

	LemmatizerEnabled bool

	// Redis Configuration
	RedisEnabled  bool
	RedisURL      string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RateLimitReqs   int
	RateLimitWindow int

	// Background worker
	WorkerConcurrency int

	// Admin API tokens; empty secret leaves /admin open
	AdminTokenSecret string
	AdminTokenTTL    time.Duration

	// Dataset reload
	DatasetWatch      bool
	DatasetReloadCron string

	// Telemetry
	OTELEnabled          bool
	OTELExporterEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", ""),
		APIPrefix:      getEnv("API_PREFIX", "/api/v1"),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5000,http://localhost:5173"), ","),
		MaxRequestSize: getEnvInt64("MAX_REQUEST_SIZE", 1048576), // 1MB

		NamasteDataPath:  getEnv("NAMASTE_DATA_PATH", "data/namaste_codes.json"),
		ICD11DataPath:    getEnv("ICD11_DATA_PATH", "data/icd11_codes.json"),
		FeedbackDataPath: getEnv("FEEDBACK_DATA_PATH", "data/feedback.json"),
		FeedbackBackend:  getEnv("FEEDBACK_BACKEND", "file"),
		ExportDir:        getEnv("EXPORT_DIR", "exports"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/namaste_mapper"),
		DBName:   getEnv("DB_NAME", "namaste_mapper"),

		EmbeddingsProvider: getEnv("EMBEDDINGS_PROVIDER", "hash"),
		ModelName:          getEnv("MODEL_NAME", ""),
		EmbeddingDim:       getEnvInt("EMBEDDING_DIM", 0),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiRPM:          getEnvInt("GEMINI_RPM", 1500),
		OrtLibraryPath:     getEnv("ORT_LIBRARY_PATH", ""),
		OnnxModelPath:      getEnv("ONNX_MODEL_PATH", "models/all-MiniLM-L6-v2/model.onnx"),
		TokenizerPath:      getEnv("TOKENIZER_PATH", "models/all-MiniLM-L6-v2/tokenizer.json"),
		MaxSeqLen:          getEnvInt("MAX_SEQ_LEN", 256),
		EmbedBatchSize:     getEnvInt("EMBED_BATCH_SIZE", 32),
		EmbedConcurrency:   getEnvInt("EMBED_CONCURRENCY", 4),
		EmbedTimeout:       getEnvDuration("EMBED_TIMEOUT", 30*time.Second),
		EmbeddingCachePath: getEnv("EMBEDDING_CACHE_PATH", ""),

		HighConfidenceThreshold:   getEnvFloat64("HIGH_CONFIDENCE_THRESHOLD", 0.85),
		MediumConfidenceThreshold: getEnvFloat64("MEDIUM_CONFIDENCE_THRESHOLD", 0.70),
		RecommendHighThreshold:    getEnvFloat64("RECOMMEND_HIGH_THRESHOLD", 0.70),
		RecommendMediumThreshold:  getEnvFloat64("RECOMMEND_MEDIUM_THRESHOLD", 0.50),
		RecommendPrecompute:       getEnvBool("RECOMMEND_PRECOMPUTE", false),
		TopKResults:               getEnvInt("TOP_K_RESULTS", 5),

		LemmatizerEnabled: getEnvBool("LEMMATIZER_ENABLED", true),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),

		AdminTokenSecret: getEnv("ADMIN_TOKEN_SECRET", ""),
		AdminTokenTTL:    getEnvDuration("ADMIN_TOKEN_TTL", 24*time.Hour),

		DatasetWatch:      getEnvBool("DATASET_WATCH", false),
		DatasetReloadCron: getEnv("DATASET_RELOAD_CRON", ""),

		OTELEnabled:          getEnvBool("OTEL_ENABLED", false),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	applyProviderDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyProviderDefaults fills model name and dimension for the selected provider
// when they are not set explicitly.
func applyProviderDefaults(cfg *Config) {
	switch cfg.EmbeddingsProvider {
	case "gemini":
		if cfg.ModelName == "" {
			cfg.ModelName = "text-embedding-004"
		}
		if cfg.EmbeddingDim == 0 {
			cfg.EmbeddingDim = 768
		}
	case "onnx":
		if cfg.ModelName == "" {
			cfg.ModelName = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if cfg.EmbeddingDim == 0 {
			cfg.EmbeddingDim = 384
		}
	default:
		if cfg.ModelName == "" {
			cfg.ModelName = "feature-hashing-v1"
		}
		if cfg.EmbeddingDim == 0 {
			cfg.EmbeddingDim = 384
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if !inUnitRange(c.HighConfidenceThreshold) || !inUnitRange(c.MediumConfidenceThreshold) {
		return fmt.Errorf("confidence thresholds must be within [0,1]")
	}
	if c.MediumConfidenceThreshold > c.HighConfidenceThreshold {
		return fmt.Errorf("MEDIUM_CONFIDENCE_THRESHOLD (%.2f) must not exceed HIGH_CONFIDENCE_THRESHOLD (%.2f)",
			c.MediumConfidenceThreshold, c.HighConfidenceThreshold)
	}
	if !inUnitRange(c.RecommendHighThreshold) || !inUnitRange(c.RecommendMediumThreshold) {
		return fmt.Errorf("recommendation thresholds must be within [0,1]")
	}
	if c.RecommendMediumThreshold > c.RecommendHighThreshold {
		return fmt.Errorf("RECOMMEND_MEDIUM_THRESHOLD (%.2f) must not exceed RECOMMEND_HIGH_THRESHOLD (%.2f)",
			c.RecommendMediumThreshold, c.RecommendHighThreshold)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if c.EmbedBatchSize <= 0 || c.EmbedConcurrency <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE and EMBED_CONCURRENCY must be positive")
	}
	if c.AdminTokenSecret != "" && len(c.AdminTokenSecret) < 32 {
		return fmt.Errorf("ADMIN_TOKEN_SECRET must be at least 32 characters")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	if c.TopKResults < 1 || c.TopKResults > 10 {
		return fmt.Errorf("TOP_K_RESULTS must be between 1 and 10")
	}

	switch c.EmbeddingsProvider {
	case "hash":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini embeddings provider")
		}
	case "onnx":
		if c.OnnxModelPath == "" || c.TokenizerPath == "" {
			return fmt.Errorf("ONNX_MODEL_PATH and TOKENIZER_PATH are required for the onnx embeddings provider")
		}
	default:
		return fmt.Errorf("unknown embeddings provider: %s", c.EmbeddingsProvider)
	}

	switch c.FeedbackBackend {
	case "file", "mongo":
	default:
		return fmt.Errorf("unknown feedback backend: %s", c.FeedbackBackend)
	}

	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("30s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
