package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoCollection     = "carts"
	maxMutateAttempts   = 5
	defaultMongoCartTTL = 90 * 24 * time.Hour
)

// MongoRepository stores one document per session and serializes writers by
// compare-and-swap on the version field.
type MongoRepository struct {
	collection *mongo.Collection
	ttl        time.Duration
	now        func() time.Time
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// NewMongoRepository uses ttl for the expiry index; zero selects 90 days.
func NewMongoRepository(db *mongo.Database, ttl time.Duration) *MongoRepository {
	if ttl <= 0 {
		ttl = defaultMongoCartTTL
	}
	return &MongoRepository{collection: db.Collection(mongoCollection), ttl: ttl, now: time.Now}
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(m.ttl.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoRepository) Get(ctx context.Context, sessionID string) (*Cart, error) {
	var c Cart
	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return &c, nil
}

func (m *MongoRepository) Mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (*Cart, error) {
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		now := m.now().UTC().Truncate(time.Millisecond)

		current, err := m.Get(ctx, sessionID)
		isNew := errors.Is(err, ErrNotFound)
		switch {
		case isNew:
			current = NewCart(sessionID, now)
		case err != nil:
			return nil, err
		}

		expected := current.Version
		if err := fn(current); err != nil {
			return nil, err
		}
		current.Version = expected + 1
		current.UpdatedAt = now

		if isNew {
			_, err = m.collection.InsertOne(ctx, current)
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to create cart: %w", err)
			}
			return current, nil
		}

		res, err := m.collection.UpdateOne(ctx,
			bson.M{"session_id": sessionID, "version": expected},
			bson.M{"$set": bson.M{
				"items":      current.Items,
				"version":    current.Version,
				"updated_at": now,
			}},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update cart: %w", err)
		}
		if res.MatchedCount == 1 {
			return current, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return nil, ErrConflict
}

func (m *MongoRepository) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := m.collection.DeleteMany(ctx, bson.M{"updated_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge carts: %w", err)
	}
	return res.DeletedCount, nil
}
