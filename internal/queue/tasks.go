package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/services"
)

const (
	TaskExportFeedback = "feedback:export"

	QueueDefault = "default"
	QueueLow     = "low"
)

type ExportFeedbackPayload struct {
	OutputPath  string    `json:"output_path"`
	RequestedAt time.Time `json:"requested_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RedisOpt builds the asynq connection from the same settings as the
// go-redis client: a redis:// URL or a host:port address.
func RedisOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %v", err)
		}
		return opt, nil
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// Task creators
func NewExportFeedbackTask(outputPath, requestID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExportFeedbackPayload{
		OutputPath:  outputPath,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskExportFeedback,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueLow),
	), nil
}

// Task handlers
type TaskProcessor struct {
	store services.FeedbackStore
}

func NewTaskProcessor(store services.FeedbackStore) *TaskProcessor {
	return &TaskProcessor{store: store}
}

// Register installs every handler on mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskExportFeedback, p.ExportFeedback)
}

func (p *TaskProcessor) ExportFeedback(ctx context.Context, t *asynq.Task) error {
	var payload ExportFeedbackPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.OutputPath == "" {
		return fmt.Errorf("missing output path: %w", asynq.SkipRetry)
	}

	records, err := p.store.List(ctx)
	if err != nil {
		return err // Will retry
	}

	if err := os.MkdirAll(filepath.Dir(payload.OutputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	resp, err := services.ExportFeedbackExcel(records, payload.OutputPath)
	if err != nil {
		return err
	}

	logger.Info("Feedback export written",
		"request_id", payload.RequestID,
		"path", resp.Path,
		"records", resp.RecordCount,
		"backend", p.store.Backend(),
		"queued_for", time.Since(payload.RequestedAt).String())
	return nil
}
