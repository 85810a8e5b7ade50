package api

import (
	"context"
	"net/http"

	"yeti/core"
)

// createTTPRequest is the body of POST /api/ttps
type createTTPRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	KillChain   string   `json:"killchain"`
	Tags        []string `json:"tags"`
}

// tagTTPRequest is the body of POST /api/ttps/{id}/tags
type tagTTPRequest struct {
	Tags []string `json:"tags" validate:"required,min=1,max=100"`
}

// killChainEntry is one row of GET /api/ttps/killchain
type killChainEntry struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// GET /api/ttps
func (a *API) listTTPs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), core.DBReadTimeout)
	defer cancel()

	ttps, err := a.ttps.List(ctx)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ttps)
}

// GET /api/ttps/killchain
func (a *API) listKillChain(w http.ResponseWriter, r *http.Request) {
	steps := make([]killChainEntry, 0, len(core.KillChainSteps))
	for _, step := range core.KillChainSteps {
		steps = append(steps, killChainEntry{Code: step.String(), Label: step.Label()})
	}
	respondJSON(w, http.StatusOK, steps)
}

// GET /api/ttps/{id}
func (a *API) getTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathObjectID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), core.DBReadTimeout)
	defer cancel()

	ttp, err := a.ttps.Get(ctx, id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ttp.Info())
}

// POST /api/ttps
func (a *API) createTTP(w http.ResponseWriter, r *http.Request) {
	var req createTTPRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		return
	}

	ttp := &core.TTP{
		Entity: core.Entity{
			Name:        req.Name,
			Description: req.Description,
			Tags:        req.Tags,
		},
		KillChain: core.KillChainStep(req.KillChain),
	}
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBWriteTimeout)
	defer cancel()

	if err := a.ttps.Create(ctx, p, ttp); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ttp)
}

// POST /api/ttps/{id}/tags
func (a *API) tagTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathObjectID(w, r)
	if !ok {
		return
	}
	var req tagTTPRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		return
	}
	if err := core.ValidateStruct(&req); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), core.DBWriteTimeout)
	defer cancel()

	ttp, err := a.ttps.Tag(ctx, id, req.Tags)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ttp)
}

// POST /api/ttps/{id}/generate-tags
func (a *API) generateTTPTags(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathObjectID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), core.DBWriteTimeout)
	defer cancel()

	ttp, err := a.ttps.GenerateTags(ctx, id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ttp)
}

// DELETE /api/ttps/{id}
func (a *API) deleteTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathObjectID(w, r)
	if !ok {
		return
	}
	p, _ := GetPrincipal(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), core.DBWriteTimeout)
	defer cancel()

	if err := a.ttps.Delete(ctx, p, id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id.Hex()})
}

// POST /api/ttps/search
func (a *API) searchTTPs(w http.ResponseWriter, r *http.Request) {
	q, ok := a.decodeSearchQuery(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), core.DBReadTimeout)
	defer cancel()

	result, err := a.ttps.Search(ctx, q)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, NewPaginationResponse(result.Items, result.Total, q.Page, q.Range))
}
