package core

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a set of users administered by its group admins.
//
// Members and Admins are sets; the storage layer maintains them with
// $addToSet/$pull. Admins is not required to be a subset of Members.
type Group struct {
	ID      primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name    string               `json:"name" bson:"name" validate:"required,max=256"`
	Enabled bool                 `json:"enabled" bson:"enabled"`
	Members []primitive.ObjectID `json:"members" bson:"members"`
	Admins  []primitive.ObjectID `json:"admins" bson:"admins"`
	Created time.Time            `json:"created" bson:"created"`
	Updated time.Time            `json:"updated" bson:"updated"`
}

// NewGroup builds an enabled group with no members
func NewGroup(name string) (*Group, error) {
	g := &Group{
		Name:    name,
		Enabled: true,
		Members: []primitive.ObjectID{},
		Admins:  []primitive.ObjectID{},
	}
	if err := ValidateStruct(g); err != nil {
		return nil, err
	}
	return g, nil
}

// HasMember reports whether uid is in Members
func (g *Group) HasMember(uid primitive.ObjectID) bool {
	return containsID(g.Members, uid)
}

// HasAdmin reports whether uid is in Admins
func (g *Group) HasAdmin(uid primitive.ObjectID) bool {
	return containsID(g.Admins, uid)
}

// AddMember adds uid to Members; adding an existing member is a no-op
func (g *Group) AddMember(uid primitive.ObjectID) {
	if !g.HasMember(uid) {
		g.Members = append(g.Members, uid)
	}
}

// RemoveMember removes uid from Members
func (g *Group) RemoveMember(uid primitive.ObjectID) {
	g.Members = removeID(g.Members, uid)
}

// ToggleAdmin removes uid from Admins if present, otherwise adds it.
// It reports whether uid is an admin afterwards.
func (g *Group) ToggleAdmin(uid primitive.ObjectID) bool {
	if g.HasAdmin(uid) {
		g.Admins = removeID(g.Admins, uid)
		return false
	}
	g.Admins = append(g.Admins, uid)
	return true
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
