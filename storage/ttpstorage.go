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

// ttpSort is the default TTP ordering: kill chain code, then name
var ttpSort = bson.D{{Key: "killchain", Value: 1}, {Key: "name", Value: 1}}

// TTPStorage handles TTP persistence and retrieval
type TTPStorage struct {
	ttpsColl Collection
}

// NewTTPStorage creates a new TTP storage handler
func NewTTPStorage(mongoDB *MongoDB) *TTPStorage {
	return &TTPStorage{
		ttpsColl: newMongoCollection(mongoDB.Database, core.CollectionTTPs),
	}
}

// GetTTPs retrieves every TTP ordered by kill chain code then name
func (ts *TTPStorage) GetTTPs(ctx context.Context) ([]core.TTP, error) {
	ctx, cancel := context.WithTimeout(ctx, core.DBReadTimeout)
	defer cancel()

	cursor, err := ts.ttpsColl.Find(ctx, bson.M{}, options.Find().SetSort(ttpSort))
	if err != nil {
		return nil, fmt.Errorf("failed to find ttps: %w", err)
	}
	defer cursor.Close(ctx)

	ttps := make([]core.TTP, 0)
	if err := cursor.All(ctx, &ttps); err != nil {
		return nil, fmt.Errorf("failed to decode ttps: %w", err)
	}
	return ttps, nil
}

// GetTTP retrieves a single TTP by ID
func (ts *TTPStorage) GetTTP(ctx context.Context, id primitive.ObjectID) (*core.TTP, error) {
	ctx, cancel := context.WithTimeout(ctx, core.DBReadTimeout)
	defer cancel()

	var ttp core.TTP
	err := ts.ttpsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&ttp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTTPNotFound
		}
		return nil, fmt.Errorf("failed to find ttp: %w", err)
	}
	return &ttp, nil
}

// CreateTTP validates and inserts a TTP, stamping its ID and timestamps
func (ts *TTPStorage) CreateTTP(ctx context.Context, ttp *core.TTP) error {
	ttp.Tags = core.NormalizeTags(ttp.Tags)
	if err := ttp.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	if ttp.ID.IsZero() {
		ttp.ID = primitive.NewObjectID()
	}
	ttp.Touch(time.Now().UTC())

	if _, err := ts.ttpsColl.InsertOne(ctx, ttp); err != nil {
		return fmt.Errorf("failed to insert ttp: %w", err)
	}
	return nil
}

// AddTTPTags merges normalized tags into the TTP's tag set
func (ts *TTPStorage) AddTTPTags(ctx context.Context, id primitive.ObjectID, tags []string) error {
	tags = core.NormalizeTags(tags)
	if len(tags) == 0 {
		return core.NewValidationError("tags", "at least one non-empty tag is required")
	}

	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	update := bson.M{
		"$addToSet": bson.M{"tags": bson.M{"$each": tags}},
		"$set":      bson.M{"updated": time.Now().UTC()},
	}
	result, err := ts.ttpsColl.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to tag ttp: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrTTPNotFound
	}
	return nil
}

// DeleteTTP deletes a TTP by ID
func (ts *TTPStorage) DeleteTTP(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	result, err := ts.ttpsColl.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete ttp: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrTTPNotFound
	}
	return nil
}

// SearchTTPs returns one page of TTPs matching filter and the total match count
func (ts *TTPStorage) SearchTTPs(ctx context.Context, filter bson.M, offset, limit int64) ([]core.TTP, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, core.DBReadTimeout)
	defer cancel()

	total, err := ts.ttpsColl.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count ttps: %w", err)
	}

	opts := options.Find().SetSort(ttpSort).SetSkip(offset).SetLimit(limit)
	cursor, err := ts.ttpsColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search ttps: %w", err)
	}
	defer cursor.Close(ctx)

	ttps := make([]core.TTP, 0)
	if err := cursor.All(ctx, &ttps); err != nil {
		return nil, 0, fmt.Errorf("failed to decode ttps: %w", err)
	}
	return ttps, total, nil
}

// EnsureIndexes creates the index backing the default kill chain ordering
func (ts *TTPStorage) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	_, err := ts.ttpsColl.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: ttpSort},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create ttp indexes: %w", err)
	}
	return nil
}
