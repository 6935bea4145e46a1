package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"namaste-icd-mapper/models"
	"namaste-icd-mapper/utils"
)

func feedbackRequest(code string, accepted bool) models.FeedbackRequest {
	return models.FeedbackRequest{
		NamasteCode:      code,
		SuggestedICDCode: "DA22",
		Accepted:         boolPtr(accepted),
	}
}

func TestFeedbackService_SequentialIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "feedback.json")
	svc := NewFeedbackService(NewFileFeedbackStore(path), nil)
	svc.now = func() time.Time { return time.Unix(1700000000, 500000000) }

	first, err := svc.Submit(context.Background(), feedbackRequest("A-1", true))
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, "FB-0001", first.FeedbackID)

	req := feedbackRequest("A-2", false)
	req.CorrectICDCode = strPtr("DA23")
	second, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "FB-0002", second.FeedbackID)

	records, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1700000000.5, records[0].Timestamp)
	assert.True(t, records[0].Accepted)
	assert.Nil(t, records[0].CorrectICDCode)
	require.NotNil(t, records[1].CorrectICDCode)
	assert.Equal(t, "DA23", *records[1].CorrectICDCode)
}

func TestFeedbackService_NullOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	svc := NewFeedbackService(NewFileFeedbackStore(path), nil)

	_, err := svc.Submit(context.Background(), feedbackRequest("A-1", true))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"notes": null`)
	assert.Contains(t, string(data), `"doctor_id": null`)
	assert.Contains(t, string(data), `"id": "FB-0001"`)
}

func TestFeedbackService_ContinuesExistingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	writeJSON(t, path, []models.FeedbackRecord{
		{ID: "FB-0001", NamasteCode: "A-1", SuggestedICDCode: "X", Accepted: true},
		{ID: "FB-0002", NamasteCode: "A-1", SuggestedICDCode: "Y"},
	})
	svc := NewFeedbackService(NewFileFeedbackStore(path), nil)

	resp, err := svc.Submit(context.Background(), feedbackRequest("A-3", true))
	require.NoError(t, err)
	assert.Equal(t, "FB-0003", resp.FeedbackID)
}

func TestFeedbackService_ConcurrentWritersGetUniqueIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	svc := NewFeedbackService(NewFileFeedbackStore(path), nil)

	const writers = 20
	ids := make([]string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.Submit(context.Background(), feedbackRequest(fmt.Sprintf("A-%d", i), i%2 == 0))
			if assert.NoError(t, err) {
				ids[i] = resp.FeedbackID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	records, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, writers)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("FB-%04d", i+1), rec.ID)
	}
}

type deadlineStore struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineStore) Append(ctx context.Context, rec models.FeedbackRecord) (models.FeedbackRecord, error) {
	d.deadline, d.ok = ctx.Deadline()
	rec.ID = feedbackID(1)
	return rec, nil
}

func (d *deadlineStore) List(ctx context.Context) ([]models.FeedbackRecord, error) { return nil, nil }
func (d *deadlineStore) Backend() string                                           { return "test" }

func TestFeedbackService_AppendIsBounded(t *testing.T) {
	store := &deadlineStore{}
	svc := NewFeedbackService(store, nil)

	_, err := svc.Submit(context.Background(), feedbackRequest("A-1", true))
	require.NoError(t, err)
	require.True(t, store.ok)
	assert.WithinDuration(t, time.Now().Add(utils.DefaultTimeout), store.deadline, time.Second)
}

func TestFeedbackService_InvalidRequest(t *testing.T) {
	svc := NewFeedbackService(NewFileFeedbackStore(filepath.Join(t.TempDir(), "f.json")), nil)

	_, err := svc.Submit(context.Background(), models.FeedbackRequest{NamasteCode: "A-1", SuggestedICDCode: "DA22"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFeedbackService_CorruptLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))
	svc := NewFeedbackService(NewFileFeedbackStore(path), nil)

	_, err := svc.Submit(context.Background(), feedbackRequest("A-1", true))
	assert.ErrorIs(t, err, ErrOperationFailed)
}

func TestMongoFeedbackStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	db := client.Database(fmt.Sprintf("namaste_test_%d", time.Now().UnixNano()))
	defer db.Drop(context.Background())

	svc := NewFeedbackService(NewMongoFeedbackStore(db), nil)
	first, err := svc.Submit(ctx, feedbackRequest("A-1", true))
	require.NoError(t, err)
	second, err := svc.Submit(ctx, feedbackRequest("A-2", false))
	require.NoError(t, err)

	assert.Equal(t, "FB-0001", first.FeedbackID)
	assert.Equal(t, "FB-0002", second.FeedbackID)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
