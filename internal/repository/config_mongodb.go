package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vinzhub-stats-api/internal/model"
)

// configCollection is the slice of *mongo.Collection the config store uses.
type configCollection interface {
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// MongoConfigRepository implements ConfigRepository using MongoDB. The config
// key is the document _id, so a second publish under the same key replaces it.
type MongoConfigRepository struct {
	client     *mongo.Client
	collection configCollection
}

// NewMongoConfigRepository connects to MongoDB and prepares the config collection.
func NewMongoConfigRepository(ctx context.Context, uri, database, collection string, log zerolog.Logger) (*MongoConfigRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "user_key", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Warn().Err(err).Msg("failed to create config index")
	}

	log.Info().Str("database", database).Str("collection", collection).Msg("MongoDB config store connected")
	return &MongoConfigRepository{client: client, collection: coll}, nil
}

// PutConfig implements ConfigRepository.
func (r *MongoConfigRepository) PutConfig(ctx context.Context, cfg *model.SharedConfig) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": cfg.Key}, cfg, opts); err != nil {
		return fmt.Errorf("failed to upsert config: %w", err)
	}
	return nil
}

// GetConfig implements ConfigRepository.
func (r *MongoConfigRepository) GetConfig(ctx context.Context, key string) (*model.SharedConfig, error) {
	var doc model.SharedConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	return &doc, nil
}

// GetStats returns statistics about the config collection.
func (r *MongoConfigRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"status": "connected"}

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, fmt.Errorf("failed to count configs: %w", err)
	}
	stats["configs"] = count
	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoConfigRepository) Close() error {
	if r.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Ensure MongoConfigRepository implements ConfigRepository
var _ ConfigRepository = (*MongoConfigRepository)(nil)
