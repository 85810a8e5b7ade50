package service

import (
	"context"
	"fmt"

	"yeti/core"
	"yeti/metrics"
	"yeti/storage"
	"yeti/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// GroupStorage defines the group storage operations needed by GroupAdminService.
// Defined here (consumer package) so tests can substitute an in-memory store.
type GroupStorage interface {
	GetGroups(ctx context.Context) ([]core.Group, error)
	GetGroupsByAdmin(ctx context.Context, uid primitive.ObjectID) ([]core.Group, error)
	GetGroup(ctx context.Context, id primitive.ObjectID) (*core.Group, error)
	ToggleGroupEnabled(ctx context.Context, id primitive.ObjectID) error
	DeleteGroup(ctx context.Context, id primitive.ObjectID) error
	AddGroupMember(ctx context.Context, gid, uid primitive.ObjectID) error
	RemoveGroupMember(ctx context.Context, gid, uid primitive.ObjectID) error
	AddGroupAdmin(ctx context.Context, gid, uid primitive.ObjectID) error
	RemoveGroupAdmin(ctx context.Context, gid, uid primitive.ObjectID) error
	SearchGroups(ctx context.Context, filter bson.M, offset, limit int64) ([]core.Group, int64, error)
}

// UserStorage defines the user lookups needed by the services
type UserStorage interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*core.User, error)
}

// SearchLimits bounds the page size of search requests
type SearchLimits struct {
	DefaultRange int
	MaxRange     int
}

// GroupAdminService implements group administration: listing, reading,
// enabling, deleting and editing the members and admins of groups.
//
// Every method takes the acting principal explicitly. Lookups of the
// referenced user and group happen before authorization, so a missing record
// is reported as core.ErrNotFound even to principals who could not manage it.
type GroupAdminService struct {
	groups  GroupStorage
	users   UserStorage
	filters *storage.FilterBuilder
	limits  SearchLimits
	logger  *zap.SugaredLogger
}

// NewGroupAdminService creates a new GroupAdminService
func NewGroupAdminService(groups GroupStorage, users UserStorage, regex *util.RegexValidator, limits SearchLimits, logger *zap.SugaredLogger) *GroupAdminService {
	if groups == nil {
		panic("groupStorage is required")
	}
	if users == nil {
		panic("userStorage is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &GroupAdminService{
		groups:  groups,
		users:   users,
		filters: storage.NewFilterBuilder(storage.GroupSearchFields, regex),
		limits:  limits,
		logger:  logger,
	}
}

// List returns every group for global admins, otherwise the groups the
// principal administers
func (s *GroupAdminService) List(ctx context.Context, p *core.Principal) ([]core.Group, error) {
	if p == nil {
		return nil, core.ErrUnauthenticated
	}
	if p.IsAdmin() {
		return s.groups.GetGroups(ctx)
	}
	return s.groups.GetGroupsByAdmin(ctx, p.ID)
}

// Get returns a group the principal may manage
func (s *GroupAdminService) Get(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error) {
	group, err := s.groups.GetGroup(ctx, gid)
	if err != nil {
		return nil, err
	}
	if !core.CanManageGroup(p, group) {
		return nil, s.deny(p, "group.get", gid)
	}
	return group, nil
}

// Toggle flips the enabled flag of a group. Only global admins may toggle.
func (s *GroupAdminService) Toggle(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error) {
	if !p.IsAdmin() {
		return nil, s.deny(p, "group.toggle", gid)
	}
	if _, err := s.groups.GetGroup(ctx, gid); err != nil {
		return nil, err
	}
	if err := s.groups.ToggleGroupEnabled(ctx, gid); err != nil {
		return nil, err
	}
	group, err := s.groups.GetGroup(ctx, gid)
	if err != nil {
		return nil, err
	}

	metrics.GroupMutations.WithLabelValues("toggle").Inc()
	s.logger.Infow("Group toggled",
		"group_id", gid.Hex(),
		"enabled", group.Enabled,
		"actor", p.Username)
	return group, nil
}

// Remove deletes a group the principal may manage
func (s *GroupAdminService) Remove(ctx context.Context, p *core.Principal, gid primitive.ObjectID) error {
	group, err := s.groups.GetGroup(ctx, gid)
	if err != nil {
		return err
	}
	if !core.CanManageGroup(p, group) {
		return s.deny(p, "group.remove", gid)
	}
	if err := s.groups.DeleteGroup(ctx, gid); err != nil {
		return err
	}

	metrics.GroupMutations.WithLabelValues("remove").Inc()
	s.logger.Infow("Group removed", "group_id", gid.Hex(), "actor", p.Username)
	return nil
}

// AddMember adds uid to the group's members and returns the reloaded group
func (s *GroupAdminService) AddMember(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error) {
	return s.mutate(ctx, p, gid, uid, "add_member", func(ctx context.Context, _ *core.Group) error {
		return s.groups.AddGroupMember(ctx, gid, uid)
	})
}

// RemoveMember removes uid from the group's members and returns the reloaded group
func (s *GroupAdminService) RemoveMember(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error) {
	return s.mutate(ctx, p, gid, uid, "remove_member", func(ctx context.Context, _ *core.Group) error {
		return s.groups.RemoveGroupMember(ctx, gid, uid)
	})
}

// ToggleAdmin removes uid from the group's admins if present, otherwise adds
// it, and returns the reloaded group. Membership is not changed.
func (s *GroupAdminService) ToggleAdmin(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error) {
	return s.mutate(ctx, p, gid, uid, "toggle_admin", func(ctx context.Context, group *core.Group) error {
		if group.HasAdmin(uid) {
			return s.groups.RemoveGroupAdmin(ctx, gid, uid)
		}
		return s.groups.AddGroupAdmin(ctx, gid, uid)
	})
}

// mutate resolves the user then the group, checks CanManageGroup, applies op
// and reloads the group
func (s *GroupAdminService) mutate(
	ctx context.Context,
	p *core.Principal,
	gid, uid primitive.ObjectID,
	operation string,
	op func(ctx context.Context, group *core.Group) error,
) (*core.Group, error) {
	if _, err := s.users.GetUser(ctx, uid); err != nil {
		return nil, err
	}
	group, err := s.groups.GetGroup(ctx, gid)
	if err != nil {
		return nil, err
	}
	if !core.CanManageGroup(p, group) {
		return nil, s.deny(p, "group."+operation, gid)
	}

	if err := op(ctx, group); err != nil {
		return nil, err
	}
	reloaded, err := s.groups.GetGroup(ctx, gid)
	if err != nil {
		return nil, fmt.Errorf("failed to reload group after %s: %w", operation, err)
	}

	metrics.GroupMutations.WithLabelValues(operation).Inc()
	s.logger.Infow("Group updated",
		"operation", operation,
		"group_id", gid.Hex(),
		"user_id", uid.Hex(),
		"actor", p.Username)
	return reloaded, nil
}

// Search runs a paginated group search. For principals that are not global
// admins the filter is scoped to enabled groups they administer, overriding
// any client-supplied conditions on those fields. q is normalized in place.
func (s *GroupAdminService) Search(ctx context.Context, p *core.Principal, q *core.SearchQuery) (*core.SearchResult[core.Group], error) {
	if p == nil {
		return nil, core.ErrUnauthenticated
	}
	if err := q.Normalize(s.limits.DefaultRange, s.limits.MaxRange); err != nil {
		metrics.SearchQueries.WithLabelValues(core.CollectionGroups, "invalid").Inc()
		return nil, err
	}
	q.Filter = copyFilter(q.Filter)
	if !p.IsAdmin() {
		ScopeToGroupAdmin(q.Filter, p.ID)
	}

	filter, err := s.filters.Build(q.Filter, q.Regex)
	if err != nil {
		metrics.SearchQueries.WithLabelValues(core.CollectionGroups, "invalid").Inc()
		s.logger.Warnw("Rejected group search filter", "error", err, "actor", p.Username)
		return nil, err
	}

	groups, total, err := s.groups.SearchGroups(ctx, filter, q.Offset(), int64(q.Range))
	if err != nil {
		metrics.SearchQueries.WithLabelValues(core.CollectionGroups, "error").Inc()
		return nil, err
	}
	metrics.SearchQueries.WithLabelValues(core.CollectionGroups, "ok").Inc()
	return &core.SearchResult[core.Group]{Items: groups, Total: total}, nil
}

// ScopeToGroupAdmin restricts filter to enabled groups administered by uid.
// Any existing condition on admins or enabled is discarded first.
func ScopeToGroupAdmin(filter map[string]interface{}, uid primitive.ObjectID) {
	for key := range filter {
		switch filterField(key) {
		case "admins", "enabled":
			delete(filter, key)
		}
	}
	filter[core.FilterKeyAdminsIn] = []interface{}{uid.Hex()}
	filter[core.FilterKeyEnabled] = true
}

// deny audits and counts an authorization failure and returns core.ErrForbidden
func (s *GroupAdminService) deny(p *core.Principal, action string, gid primitive.ObjectID) error {
	username, uid := "", ""
	if p != nil {
		username, uid = p.Username, p.ID.Hex()
	}
	metrics.AuthorizationDenials.WithLabelValues(action).Inc()
	s.logger.Warnw("AUDIT: Group authorization denied",
		"action", action,
		"group_id", gid.Hex(),
		"user_id", uid,
		"username", username)
	return core.ErrForbidden
}
