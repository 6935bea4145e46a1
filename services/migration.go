package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"namaste-icd-mapper/models"
)

// MigrationResult reports one feedback import.
type MigrationResult struct {
	Read     int `json:"read"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Sequence int `json:"sequence"`
}

func parseFeedbackSeq(id string) (int, error) {
	var seq int
	if _, err := fmt.Sscanf(id, "FB-%d", &seq); err != nil || seq < 1 {
		return 0, fmt.Errorf("%w: malformed feedback id %q", ErrInvalidInput, id)
	}
	return seq, nil
}

// Import copies records into the collection keeping their ids. Records whose
// id is already stored are skipped, so an import can be rerun. The id counter
// is raised to the highest imported sequence.
func (s *MongoFeedbackStore) Import(ctx context.Context, records []models.FeedbackRecord) (MigrationResult, error) {
	result := MigrationResult{Read: len(records)}

	maxSeq := 0
	for _, rec := range records {
		seq, err := parseFeedbackSeq(rec.ID)
		if err != nil {
			return result, err
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}

	for _, rec := range records {
		res, err := s.feedback.UpdateOne(ctx,
			bson.M{"feedback_id": rec.ID},
			bson.M{"$setOnInsert": rec},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return result, fmt.Errorf("failed to import feedback %s: %w", rec.ID, err)
		}
		if res.UpsertedCount > 0 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if maxSeq > 0 {
		_, err := s.counters.UpdateOne(ctx,
			bson.M{"_id": feedbackCounterID},
			bson.M{"$max": bson.M{"seq": maxSeq}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return result, fmt.Errorf("failed to advance feedback counter: %w", err)
		}
	}
	result.Sequence = maxSeq
	return result, nil
}

// Count returns the number of stored feedback records.
func (s *MongoFeedbackStore) Count(ctx context.Context) (int64, error) {
	n, err := s.feedback.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}
