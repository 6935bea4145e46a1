package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/internal/telemetry"
	"namaste-icd-mapper/models"
	"namaste-icd-mapper/utils"
)

const feedbackCounterID = "feedback"

// FeedbackStore is an append-only log of feedback records. Append assigns
// the record id from the sequence position of the new record.
type FeedbackStore interface {
	Append(ctx context.Context, rec models.FeedbackRecord) (models.FeedbackRecord, error)
	List(ctx context.Context) ([]models.FeedbackRecord, error)
	Backend() string
}

func feedbackID(seq int) string {
	return fmt.Sprintf("FB-%04d", seq)
}

// FileFeedbackStore keeps the log as a JSON array, rewritten on every append.
type FileFeedbackStore struct {
	path string
	mu   sync.Mutex
}

func NewFileFeedbackStore(path string) *FileFeedbackStore {
	return &FileFeedbackStore{path: path}
}

func (s *FileFeedbackStore) Backend() string { return "file" }

func (s *FileFeedbackStore) Append(ctx context.Context, rec models.FeedbackRecord) (models.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return models.FeedbackRecord{}, err
	}

	rec.ID = feedbackID(len(records) + 1)
	records = append(records, rec)

	if err := s.write(records); err != nil {
		return models.FeedbackRecord{}, err
	}
	return rec, nil
}

func (s *FileFeedbackStore) List(ctx context.Context) ([]models.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileFeedbackStore) read() ([]models.FeedbackRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.FeedbackRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback log: %w", err)
	}
	if len(data) == 0 {
		return []models.FeedbackRecord{}, nil
	}

	var records []models.FeedbackRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse feedback log %s: %w", s.path, err)
	}
	return records, nil
}

// write replaces the log through a temp file in the same directory so a
// crash never leaves a truncated array behind.
func (s *FileFeedbackStore) write(records []models.FeedbackRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal feedback log: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create feedback directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".feedback-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp feedback file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write feedback log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write feedback log: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// MongoFeedbackStore assigns ids from an atomically incremented counter
// document, so concurrent writers across processes never collide.
type MongoFeedbackStore struct {
	feedback *mongo.Collection
	counters *mongo.Collection
}

func NewMongoFeedbackStore(db *mongo.Database) *MongoFeedbackStore {
	return &MongoFeedbackStore{
		feedback: db.Collection(config.FeedbackCollection),
		counters: db.Collection(config.CountersCollection),
	}
}

func (s *MongoFeedbackStore) Backend() string { return "mongo" }

func (s *MongoFeedbackStore) nextSequence(ctx context.Context) (int, error) {
	var counter struct {
		Seq int `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": feedbackCounterID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate feedback id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoFeedbackStore) Append(ctx context.Context, rec models.FeedbackRecord) (models.FeedbackRecord, error) {
	seq, err := s.nextSequence(ctx)
	if err != nil {
		return models.FeedbackRecord{}, err
	}
	rec.ID = feedbackID(seq)

	if _, err := s.feedback.InsertOne(ctx, rec); err != nil {
		return models.FeedbackRecord{}, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return rec, nil
}

func (s *MongoFeedbackStore) List(ctx context.Context) ([]models.FeedbackRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.feedback.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.FeedbackRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode feedback: %w", err)
	}
	return records, nil
}

// FeedbackService records clinician verdicts on suggestions.
type FeedbackService struct {
	store   FeedbackStore
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewFeedbackService(store FeedbackStore, metrics *telemetry.Metrics) *FeedbackService {
	return &FeedbackService{store: store, metrics: metrics, now: time.Now}
}

func (fs *FeedbackService) Submit(ctx context.Context, req models.FeedbackRequest) (*models.FeedbackResponse, error) {
	if req.NamasteCode == "" || req.SuggestedICDCode == "" || req.Accepted == nil {
		return nil, fmt.Errorf("%w: namaste_code, suggested_icd_code and accepted are required", ErrInvalidInput)
	}

	now := fs.now()
	rec := models.FeedbackRecord{
		Timestamp:        float64(now.UnixNano()) / 1e9,
		NamasteCode:      req.NamasteCode,
		SuggestedICDCode: req.SuggestedICDCode,
		Accepted:         *req.Accepted,
		CorrectICDCode:   req.CorrectICDCode,
		Notes:            req.Notes,
		DoctorID:         req.DoctorID,
	}

	storeCtx, cancel := utils.WithTimeout(ctx)
	defer cancel()

	saved, err := fs.store.Append(storeCtx, rec)
	if err != nil {
		logger.Error("Failed to record feedback",
			"namaste_code", req.NamasteCode,
			"backend", fs.store.Backend(),
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrOperationFailed, err)
	}

	fs.metrics.RecordFeedback(fs.store.Backend())
	logger.Info("Feedback recorded",
		"feedback_id", saved.ID,
		"namaste_code", saved.NamasteCode,
		"accepted", saved.Accepted)

	return &models.FeedbackResponse{
		Success:    true,
		Message:    "Feedback recorded successfully",
		FeedbackID: saved.ID,
	}, nil
}

func (fs *FeedbackService) List(ctx context.Context) ([]models.FeedbackRecord, error) {
	return fs.store.List(ctx)
}
