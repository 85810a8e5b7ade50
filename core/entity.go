package core

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DisplayField is a (field, label) pair used when rendering an entity as a table
type DisplayField struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// baseDisplayFields are the columns every entity variant starts from.
// Variants copy and extend it; nothing mutates this slice.
var baseDisplayFields = []DisplayField{
	{Field: "name", Label: "Name"},
	{Field: "tags", Label: "Tags"},
}

// Entity holds the fields shared by every threat-intelligence entity
type Entity struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name" validate:"required,max=1024"`
	Description string             `json:"description,omitempty" bson:"description,omitempty" validate:"max=10000"`
	Tags        []string           `json:"tags" bson:"tags"`
	Created     time.Time          `json:"created" bson:"created"`
	Updated     time.Time          `json:"updated" bson:"updated"`
}

// Info returns the rendering-friendly view of the base fields
func (e *Entity) Info() map[string]interface{} {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"id":          e.ID.Hex(),
		"name":        e.Name,
		"description": e.Description,
		"tags":        tags,
		"created":     e.Created,
		"updated":     e.Updated,
	}
}

// Tag merges tags into the entity's tag set
func (e *Entity) Tag(tags ...string) {
	e.Tags = NormalizeTags(append(append([]string{}, e.Tags...), tags...))
}

// Touch stamps the write timestamps
func (e *Entity) Touch(now time.Time) {
	if e.Created.IsZero() {
		e.Created = now
	}
	e.Updated = now
}

// NormalizeTags trims, lower-cases and de-duplicates tags, keeping first-seen order.
// Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
