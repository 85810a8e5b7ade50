package storage

import (
	"context"
	"testing"

	"yeti/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestTTPStorage_GetTTPs_OrderedByKillChain(t *testing.T) {
	coll := &mockCollection{}
	ts := &TTPStorage{ttpsColl: coll}

	var findOpts []*options.FindOptions
	cursor := &mockCursor{}
	cursor.On("All", mock.Anything, mock.Anything).Return(nil)
	coll.On("Find", mock.Anything, bson.M{}, mock.Anything).
		Run(func(args mock.Arguments) { findOpts = args.Get(2).([]*options.FindOptions) }).
		Return(cursor, nil)

	ttps, err := ts.GetTTPs(context.Background())

	require.NoError(t, err)
	assert.Empty(t, ttps)
	require.Len(t, findOpts, 1)
	assert.Equal(t, bson.D{{Key: "killchain", Value: 1}, {Key: "name", Value: 1}}, findOpts[0].Sort)
}

func TestTTPStorage_CreateTTP(t *testing.T) {
	coll := &mockCollection{}
	ts := &TTPStorage{ttpsColl: coll}

	ttp := &core.TTP{Entity: core.Entity{Name: "Spearphishing", Tags: []string{"Phishing", "phishing "}}, KillChain: core.KillChainDelivery}
	coll.On("InsertOne", mock.Anything, ttp).Return(&mongo.InsertOneResult{}, nil)

	require.NoError(t, ts.CreateTTP(context.Background(), ttp))

	assert.False(t, ttp.ID.IsZero())
	assert.Equal(t, []string{"phishing"}, ttp.Tags)
	assert.False(t, ttp.Created.IsZero())
	assert.Equal(t, ttp.Created, ttp.Updated)
}

func TestTTPStorage_CreateTTP_InvalidKillChain(t *testing.T) {
	coll := &mockCollection{}
	ts := &TTPStorage{ttpsColl: coll}

	ttp := &core.TTP{Entity: core.Entity{Name: "Spearphishing"}, KillChain: "9"}

	err := ts.CreateTTP(context.Background(), ttp)

	assert.True(t, core.IsValidationError(err))
	coll.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestTTPStorage_AddTTPTags(t *testing.T) {
	coll := &mockCollection{}
	ts := &TTPStorage{ttpsColl: coll}
	id := primitive.NewObjectID()

	var update bson.M
	coll.On("UpdateOne", mock.Anything, bson.M{"_id": id}, mock.Anything).
		Run(func(args mock.Arguments) { update = args.Get(2).(bson.M) }).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)

	require.NoError(t, ts.AddTTPTags(context.Background(), id, []string{"APT28", " apt28", "C2"}))

	assert.Equal(t, bson.M{"tags": bson.M{"$each": []string{"apt28", "c2"}}}, update["$addToSet"])
}

func TestTTPStorage_AddTTPTags_Empty(t *testing.T) {
	coll := &mockCollection{}
	ts := &TTPStorage{ttpsColl: coll}

	err := ts.AddTTPTags(context.Background(), primitive.NewObjectID(), []string{" ", ""})

	assert.True(t, core.IsValidationError(err))
	coll.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestTTPStorage_GetTTP_NotFound(t *testing.T) {
	coll := &mockCollection{}
	ts := &TTPStorage{ttpsColl: coll}

	coll.On("FindOne", mock.Anything, mock.Anything).Return(&singleResult{err: mongo.ErrNoDocuments})

	_, err := ts.GetTTP(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTTPStorage_DeleteTTP_NotFound(t *testing.T) {
	coll := &mockCollection{}
	ts := &TTPStorage{ttpsColl: coll}

	coll.On("DeleteOne", mock.Anything, mock.Anything).Return(&mongo.DeleteResult{}, nil)

	assert.Equal(t, ErrTTPNotFound, ts.DeleteTTP(context.Background(), primitive.NewObjectID()))
}

func TestUserStorage_GetUser(t *testing.T) {
	coll := &mockCollection{}
	us := &UserStorage{usersColl: coll}
	id := primitive.NewObjectID()

	coll.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&singleResult{fill: func(v interface{}) {
		*v.(*core.User) = core.User{ID: id, Username: "alice", Roles: []string{core.RoleAnalyst}, Enabled: true}
	}}).Once()
	coll.On("FindOne", mock.Anything, mock.Anything).Return(&singleResult{err: mongo.ErrNoDocuments})

	user, err := us.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = us.GetUser(context.Background(), primitive.NewObjectID())
	assert.Equal(t, ErrUserNotFound, err)
}
