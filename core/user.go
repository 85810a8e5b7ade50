package core

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Permission is a coarse capability granted through roles
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
	PermAdmin Permission = "admin"
)

// Role names
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// rolePermissions maps each known role to the permissions it grants
var rolePermissions = map[string][]Permission{
	RoleAdmin:   {PermRead, PermWrite, PermAdmin},
	RoleAnalyst: {PermRead, PermWrite},
	RoleViewer:  {PermRead},
}

// User is an account document referenced by groups
type User struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username string             `json:"username" bson:"username"`
	Roles    []string           `json:"roles" bson:"roles"`
	Enabled  bool               `json:"enabled" bson:"enabled"`
	Created  time.Time          `json:"created" bson:"created"`
}

// Principal is the authenticated actor of a single request
type Principal struct {
	ID          primitive.ObjectID
	Username    string
	Roles       []string
	Permissions []Permission
}

// NewPrincipal resolves a user's roles into a Principal.
// Unknown roles grant nothing.
func NewPrincipal(u *User) *Principal {
	p := &Principal{
		ID:       u.ID,
		Username: u.Username,
		Roles:    append([]string{}, u.Roles...),
	}
	seen := make(map[Permission]struct{})
	for _, role := range u.Roles {
		for _, perm := range rolePermissions[role] {
			if _, ok := seen[perm]; ok {
				continue
			}
			seen[perm] = struct{}{}
			p.Permissions = append(p.Permissions, perm)
		}
	}
	return p
}

// HasRole reports whether the principal holds role
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether any of the principal's roles grants perm
func (p *Principal) HasPermission(perm Permission) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal is a global administrator
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}
