package api

import (
	"context"
	"net/http"

	"yeti/core"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// groupMemberRequest is the body of add-member, remove-member and toggle-admin
type groupMemberRequest struct {
	GID string `json:"gid" validate:"required,mongodb"`
	UID string `json:"uid" validate:"required,mongodb"`
}

// groupMutation is a membership change applied through the service
type groupMutation func(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error)

// GET /api/groups
func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBReadTimeout)
	defer cancel()

	groups, err := a.groups.List(ctx, p)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// GET /api/groups/{id}
func (a *API) getGroup(w http.ResponseWriter, r *http.Request) {
	gid, ok := a.pathObjectID(w, r)
	if !ok {
		return
	}
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBReadTimeout)
	defer cancel()

	group, err := a.groups.Get(ctx, p, gid)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// POST /api/groups/toggle/{id}
func (a *API) toggleGroup(w http.ResponseWriter, r *http.Request) {
	gid, ok := a.pathObjectID(w, r)
	if !ok {
		return
	}
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBWriteTimeout)
	defer cancel()

	group, err := a.groups.Toggle(ctx, p, gid)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":      group.ID.Hex(),
		"enabled": group.Enabled,
	})
}

// DELETE /api/groups/{id}
func (a *API) removeGroup(w http.ResponseWriter, r *http.Request) {
	gid, ok := a.pathObjectID(w, r)
	if !ok {
		return
	}
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBWriteTimeout)
	defer cancel()

	if err := a.groups.Remove(ctx, p, gid); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": gid.Hex()})
}

// POST /api/groups/add-member
func (a *API) addGroupMember(w http.ResponseWriter, r *http.Request) {
	a.mutateGroup(w, r, a.groups.AddMember)
}

// POST /api/groups/remove-member
func (a *API) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	a.mutateGroup(w, r, a.groups.RemoveMember)
}

// POST /api/groups/toggle-admin
func (a *API) toggleGroupAdmin(w http.ResponseWriter, r *http.Request) {
	a.mutateGroup(w, r, a.groups.ToggleAdmin)
}

func (a *API) mutateGroup(w http.ResponseWriter, r *http.Request, mutate groupMutation) {
	var req groupMemberRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		return
	}
	if err := core.ValidateStruct(&req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	// Both ids passed the mongodb tag
	gid, _ := primitive.ObjectIDFromHex(req.GID)
	uid, _ := primitive.ObjectIDFromHex(req.UID)
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBWriteTimeout)
	defer cancel()

	group, err := mutate(ctx, p, gid, uid)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// POST /api/groups/search
func (a *API) searchGroups(w http.ResponseWriter, r *http.Request) {
	q, ok := a.decodeSearchQuery(w, r)
	if !ok {
		return
	}
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBReadTimeout)
	defer cancel()

	result, err := a.groups.Search(ctx, p, q)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, NewPaginationResponse(result.Items, result.Total, q.Page, q.Range))
}
