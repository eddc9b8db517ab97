package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	cartsCollection = "carts"

	// cartRetention is the TTL applied to carts that are not touched.
	cartRetention = 90 * 24 * time.Hour

	maxUpdateAttempts = 5
)

// MongoRepository keeps one document per user in the carts collection.
type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(cartsCollection),
		now:        time.Now,
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return &cart, nil
}

// UpdateCart uses the cart version as an optimistic lock. The replace only
// matches the version that was read; a lost race reloads and reapplies fn.
// A single-document write is atomic, so a cancelled request either stored
// the whole cart or nothing.
func (m *MongoRepository) UpdateCart(ctx context.Context, userID string, createIfMissing bool, fn MutateFunc) (*domain.Cart, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		cart, err := m.GetCart(ctx, userID)
		isNew := false
		if errors.Is(err, domain.ErrCartNotFound) && createIfMissing {
			cart = domain.NewCart(userID, m.now())
			isNew = true
		} else if err != nil {
			return nil, err
		}

		if err := fn(cart); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cart update aborted: %w", err)
		}

		expected := cart.Version
		cart.Version++
		cart.UpdatedAt = m.now()

		if isNew {
			_, err = m.collection.InsertOne(ctx, cart)
			if mongo.IsDuplicateKeyError(err) {
				continue // created concurrently, retry against the stored cart
			}
			if err != nil {
				return nil, fmt.Errorf("failed to create cart: %w", err)
			}
			return cart, nil
		}

		filter := bson.M{"user_id": userID, "version": expected}
		result, err := m.collection.ReplaceOne(ctx, filter, cart)
		if err != nil {
			return nil, fmt.Errorf("failed to replace cart: %w", err)
		}
		if result.MatchedCount == 0 {
			continue
		}
		return cart, nil
	}

	return nil, domain.ErrConcurrentUpdate
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartRetention.Seconds())),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
