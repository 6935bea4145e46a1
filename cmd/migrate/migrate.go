package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/services"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  feedback-to-mongo  - Copy the JSON feedback log into MongoDB")
		fmt.Println("  verify-migration   - Compare the JSON log with the MongoDB collection")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to MongoDB
	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	mongoStore := services.NewMongoFeedbackStore(client.Database(cfg.DBName))
	fileStore := services.NewFileFeedbackStore(cfg.FeedbackDataPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "feedback-to-mongo":
		if err := migrateFeedback(ctx, fileStore, mongoStore); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Migration completed successfully!")

	case "verify-migration":
		if err := verifyMigration(ctx, fileStore, mongoStore); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}
		fmt.Println("Migration verification completed successfully!")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func migrateFeedback(ctx context.Context, fileStore *services.FileFeedbackStore, mongoStore *services.MongoFeedbackStore) error {
	records, err := fileStore.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d feedback records to migrate\n", len(records))

	res, err := mongoStore.Import(ctx, records)
	if err != nil {
		return fmt.Errorf("import failed after %d records: %w", res.Inserted+res.Skipped, err)
	}

	fmt.Printf("  inserted: %d\n  already present: %d\n  counter: FB-%04d\n",
		res.Inserted, res.Skipped, res.Sequence)
	return nil
}

func verifyMigration(ctx context.Context, fileStore *services.FileFeedbackStore, mongoStore *services.MongoFeedbackStore) error {
	fmt.Println("Verifying migration...")

	records, err := fileStore.List(ctx)
	if err != nil {
		return err
	}
	count, err := mongoStore.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("  file:  %d records\n  mongo: %d records\n", len(records), count)
	if count < int64(len(records)) {
		return fmt.Errorf("mongo holds %d of %d records", count, len(records))
	}
	return nil
}
