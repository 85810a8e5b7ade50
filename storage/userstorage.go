package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yeti/core"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStorage handles user lookups for authentication and group membership
type UserStorage struct {
	usersColl Collection
}

// NewUserStorage creates a new user storage handler
func NewUserStorage(mongoDB *MongoDB) *UserStorage {
	return &UserStorage{
		usersColl: newMongoCollection(mongoDB.Database, core.CollectionUsers),
	}
}

// GetUser retrieves a single user by ID
func (us *UserStorage) GetUser(ctx context.Context, id primitive.ObjectID) (*core.User, error) {
	ctx, cancel := context.WithTimeout(ctx, core.DBReadTimeout)
	defer cancel()

	var user core.User
	err := us.usersColl.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user and sets its ID
func (us *UserStorage) CreateUser(ctx context.Context, user *core.User) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Created.IsZero() {
		user.Created = time.Now().UTC()
	}

	if _, err := us.usersColl.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %q already exists: %w", user.Username, err)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// EnsureIndexes creates the unique username index
func (us *UserStorage) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	_, err := us.usersColl.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}
