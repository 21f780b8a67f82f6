package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mdevries/open-index-search/config"
)

// Client wraps the MongoDB driver for the seeder
type Client struct {
	client   *mongo.Client
	database string
	timeout  time.Duration
}

// NewClient connects to MongoDB and verifies the connection
func NewClient(cfg config.MongoDBConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeout)*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.GetMongoURI()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client:   client,
		database: cfg.Database,
		timeout:  time.Duration(cfg.Timeout) * time.Second,
	}, nil
}

// Disconnect closes the MongoDB connection
func (c *Client) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Collection returns a collection from the configured database
func (c *Client) Collection(name string) *mongo.Collection {
	return c.client.Database(c.database).Collection(name)
}

// CountDocuments returns the number of documents in a collection
func (c *Client) CountDocuments(collection string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	count, err := c.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// FindAll returns a cursor over every document in a collection,
// tuned for bulk reads
func (c *Client) FindAll(ctx context.Context, collection string) (*mongo.Cursor, error) {
	opts := options.Find().
		SetBatchSize(1000).
		SetNoCursorTimeout(true)

	cursor, err := c.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	return cursor, nil
}

// FindChangedSince returns documents modified after the given time.
// With an empty or "_id" timestamp field the ObjectID timestamp is
// used instead.
func (c *Client) FindChangedSince(ctx context.Context, collection, timestampField string, since time.Time) (*mongo.Cursor, error) {
	var filter bson.M
	var sortField string

	if timestampField == "" || timestampField == "_id" {
		sinceID := primitive.NewObjectIDFromTimestamp(since)
		filter = bson.M{"_id": bson.M{"$gt": sinceID}}
		sortField = "_id"
	} else {
		filter = bson.M{timestampField: bson.M{"$gt": since}}
		sortField = timestampField
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: 1}}).
		SetBatchSize(500).
		SetNoCursorTimeout(true)

	cursor, err := c.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents since %v: %w", since, err)
	}
	return cursor, nil
}
