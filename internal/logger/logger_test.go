package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"namaste-icd-mapper/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN", slog.LevelInfo))
	assert.Equal(t, slog.LevelError, parseLevel("error", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose", slog.LevelInfo))
}

func TestInitLogger_LogLevelOverridesMode(t *testing.T) {
	InitLogger(&config.Config{GinMode: "debug", LogLevel: "error"})
	assert.NotNil(t, Logger)
	assert.False(t, Logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, Logger.Enabled(context.Background(), slog.LevelError))
}
