package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sweetpotato0/docqa/errors"
)

// MongoStore persists run records in MongoDB.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns settings for a local development database.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "docqa",
		Collection: "runs",
	}
}

// NewMongoStore connects to MongoDB and prepares the runs collection.
func NewMongoStore(config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Transient("mongodb", "ping", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)
	store := &MongoStore{client: client, collection: collection}
	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	return err
}

// Record implements the Store interface.
func (s *MongoStore) Record(ctx context.Context, record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil: %w", errors.ErrInvalidInput)
	}
	if record.ID == "" {
		record.ID = fmt.Sprintf("run:%d", time.Now().UnixNano())
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		return errors.Transient("mongodb", "insert-run", err)
	}
	return nil
}

// Recent implements the Store interface.
func (s *MongoStore) Recent(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	cursor, err := s.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(limit)))
	if err != nil {
		return nil, errors.Transient("mongodb", "find-runs", err)
	}
	defer cursor.Close(ctx)

	var records []*RunRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode run records: %w", err)
	}
	return records, nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}
