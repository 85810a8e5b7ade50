package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGroupAddMember_Idempotent(t *testing.T) {
	g, err := NewGroup("hunters")
	require.NoError(t, err)
	uid := primitive.NewObjectID()

	g.AddMember(uid)
	g.AddMember(uid)

	assert.Equal(t, []primitive.ObjectID{uid}, g.Members)
	assert.True(t, g.HasMember(uid))
}

func TestGroupRemoveMember(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	g := &Group{Members: []primitive.ObjectID{a, b}}

	g.RemoveMember(a)
	assert.Equal(t, []primitive.ObjectID{b}, g.Members)

	// Removing an absent member is harmless
	g.RemoveMember(a)
	assert.Equal(t, []primitive.ObjectID{b}, g.Members)
}

func TestGroupToggleAdmin_Involution(t *testing.T) {
	existing := primitive.NewObjectID()
	uid := primitive.NewObjectID()
	g := &Group{Admins: []primitive.ObjectID{existing}}

	assert.True(t, g.ToggleAdmin(uid))
	assert.True(t, g.HasAdmin(uid))

	assert.False(t, g.ToggleAdmin(uid))
	assert.False(t, g.HasAdmin(uid))
	assert.Equal(t, []primitive.ObjectID{existing}, g.Admins)
}

func TestGroupToggleAdmin_DoesNotTouchMembers(t *testing.T) {
	uid := primitive.NewObjectID()
	g := &Group{}

	g.ToggleAdmin(uid)
	assert.True(t, g.HasAdmin(uid))
	assert.False(t, g.HasMember(uid))
}

func TestNewGroup_RequiresName(t *testing.T) {
	_, err := NewGroup("")
	assert.True(t, IsValidationError(err))
}

func TestSearchQueryNormalize(t *testing.T) {
	q := SearchQuery{}
	require.NoError(t, q.Normalize(50, 500))
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 50, q.Range)
	assert.NotNil(t, q.Filter)
	assert.Equal(t, int64(0), q.Offset())

	q = SearchQuery{Page: 3, Range: 10000}
	require.NoError(t, q.Normalize(50, 500))
	assert.Equal(t, 500, q.Range)
	assert.Equal(t, int64(1000), q.Offset())
}

func TestSearchQueryNormalize_PageOutOfRange(t *testing.T) {
	q := SearchQuery{Page: 1e16, Range: 1000}
	err := q.Normalize(50, 1000)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	q = SearchQuery{Page: MaxSearchPage, Range: 1000}
	require.NoError(t, q.Normalize(50, 1000))
	assert.Equal(t, int64(MaxSearchPage-1)*1000, q.Offset())
	assert.Positive(t, q.Offset())
}
