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

// GroupStorage handles group persistence and retrieval
type GroupStorage struct {
	groupsColl Collection
}

// NewGroupStorage creates a new group storage handler
func NewGroupStorage(mongoDB *MongoDB) *GroupStorage {
	return &GroupStorage{
		groupsColl: newMongoCollection(mongoDB.Database, core.CollectionGroups),
	}
}

// GetGroups retrieves every group ordered by name
func (gs *GroupStorage) GetGroups(ctx context.Context) ([]core.Group, error) {
	return gs.find(ctx, bson.M{})
}

// GetGroupsByAdmin retrieves the groups that list uid as an admin
func (gs *GroupStorage) GetGroupsByAdmin(ctx context.Context, uid primitive.ObjectID) ([]core.Group, error) {
	return gs.find(ctx, bson.M{"admins": uid})
}

func (gs *GroupStorage) find(ctx context.Context, filter bson.M) ([]core.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, core.DBReadTimeout)
	defer cancel()

	cursor, err := gs.groupsColl.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find groups: %w", err)
	}
	defer cursor.Close(ctx)

	groups := make([]core.Group, 0)
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	return groups, nil
}

// GetGroup retrieves a single group by ID
func (gs *GroupStorage) GetGroup(ctx context.Context, id primitive.ObjectID) (*core.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, core.DBReadTimeout)
	defer cancel()

	var group core.Group
	err := gs.groupsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	return &group, nil
}

// CreateGroup inserts a new group and sets its ID
func (gs *GroupStorage) CreateGroup(ctx context.Context, group *core.Group) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	if group.ID.IsZero() {
		group.ID = primitive.NewObjectID()
	}
	if group.Members == nil {
		group.Members = []primitive.ObjectID{}
	}
	if group.Admins == nil {
		group.Admins = []primitive.ObjectID{}
	}
	group.Created = now
	group.Updated = now

	if _, err := gs.groupsColl.InsertOne(ctx, group); err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// ToggleGroupEnabled flips the enabled flag in a single atomic update
func (gs *GroupStorage) ToggleGroupEnabled(ctx context.Context, id primitive.ObjectID) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"enabled": bson.M{"$not": bson.A{"$enabled"}},
			"updated": time.Now().UTC(),
		}}},
	}
	return gs.update(ctx, id, pipeline, "toggle group")
}

// DeleteGroup deletes a group by ID
func (gs *GroupStorage) DeleteGroup(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	result, err := gs.groupsColl.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// AddGroupMember adds uid to the group's members set
func (gs *GroupStorage) AddGroupMember(ctx context.Context, gid, uid primitive.ObjectID) error {
	return gs.update(ctx, gid, setOp("$addToSet", "members", uid), "add group member")
}

// RemoveGroupMember removes uid from the group's members set
func (gs *GroupStorage) RemoveGroupMember(ctx context.Context, gid, uid primitive.ObjectID) error {
	return gs.update(ctx, gid, setOp("$pull", "members", uid), "remove group member")
}

// AddGroupAdmin adds uid to the group's admins set
func (gs *GroupStorage) AddGroupAdmin(ctx context.Context, gid, uid primitive.ObjectID) error {
	return gs.update(ctx, gid, setOp("$addToSet", "admins", uid), "add group admin")
}

// RemoveGroupAdmin removes uid from the group's admins set
func (gs *GroupStorage) RemoveGroupAdmin(ctx context.Context, gid, uid primitive.ObjectID) error {
	return gs.update(ctx, gid, setOp("$pull", "admins", uid), "remove group admin")
}

// SearchGroups returns one page of groups matching filter and the total match count
func (gs *GroupStorage) SearchGroups(ctx context.Context, filter bson.M, offset, limit int64) ([]core.Group, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, core.DBReadTimeout)
	defer cancel()

	total, err := gs.groupsColl.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)
	cursor, err := gs.groupsColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search groups: %w", err)
	}
	defer cursor.Close(ctx)

	groups := make([]core.Group, 0)
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, 0, fmt.Errorf("failed to decode groups: %w", err)
	}
	return groups, total, nil
}

// EnsureIndexes creates the indexes used by admin scoping and membership lookups
func (gs *GroupStorage) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	_, err := gs.groupsColl.CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "admins", Value: 1}}},
		{Keys: bson.D{{Key: "members", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create group indexes: %w", err)
	}
	return nil
}

func (gs *GroupStorage) update(ctx context.Context, id primitive.ObjectID, update interface{}, what string) error {
	ctx, cancel := context.WithTimeout(ctx, core.DBWriteTimeout)
	defer cancel()

	result, err := gs.groupsColl.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if result.MatchedCount == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// setOp builds a $addToSet or $pull update on a set field that also stamps updated
func setOp(op, field string, uid primitive.ObjectID) bson.M {
	return bson.M{
		op:     bson.M{field: uid},
		"$set": bson.M{"updated": time.Now().UTC()},
	}
}
