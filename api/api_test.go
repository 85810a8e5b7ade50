package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yeti/config"
	"yeti/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret-0123456789abcdef0123456789"

type mockGroupService struct {
	list         func(ctx context.Context, p *core.Principal) ([]core.Group, error)
	get          func(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error)
	toggle       func(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error)
	remove       func(ctx context.Context, p *core.Principal, gid primitive.ObjectID) error
	addMember    func(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error)
	removeMember func(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error)
	toggleAdmin  func(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error)
	search       func(ctx context.Context, p *core.Principal, q *core.SearchQuery) (*core.SearchResult[core.Group], error)

	calls int
}

func (m *mockGroupService) List(ctx context.Context, p *core.Principal) ([]core.Group, error) {
	m.calls++
	if m.list != nil {
		return m.list(ctx, p)
	}
	return []core.Group{}, nil
}

func (m *mockGroupService) Get(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error) {
	m.calls++
	if m.get != nil {
		return m.get(ctx, p, gid)
	}
	return &core.Group{ID: gid}, nil
}

func (m *mockGroupService) Toggle(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error) {
	m.calls++
	if m.toggle != nil {
		return m.toggle(ctx, p, gid)
	}
	return &core.Group{ID: gid}, nil
}

func (m *mockGroupService) Remove(ctx context.Context, p *core.Principal, gid primitive.ObjectID) error {
	m.calls++
	if m.remove != nil {
		return m.remove(ctx, p, gid)
	}
	return nil
}

func (m *mockGroupService) AddMember(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error) {
	m.calls++
	if m.addMember != nil {
		return m.addMember(ctx, p, gid, uid)
	}
	return &core.Group{ID: gid, Members: []primitive.ObjectID{uid}}, nil
}

func (m *mockGroupService) RemoveMember(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error) {
	m.calls++
	if m.removeMember != nil {
		return m.removeMember(ctx, p, gid, uid)
	}
	return &core.Group{ID: gid}, nil
}

func (m *mockGroupService) ToggleAdmin(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error) {
	m.calls++
	if m.toggleAdmin != nil {
		return m.toggleAdmin(ctx, p, gid, uid)
	}
	return &core.Group{ID: gid, Admins: []primitive.ObjectID{uid}}, nil
}

func (m *mockGroupService) Search(ctx context.Context, p *core.Principal, q *core.SearchQuery) (*core.SearchResult[core.Group], error) {
	m.calls++
	if m.search != nil {
		return m.search(ctx, p, q)
	}
	return &core.SearchResult[core.Group]{Items: []core.Group{}}, nil
}

type mockTTPService struct {
	list         func(ctx context.Context) ([]core.TTP, error)
	get          func(ctx context.Context, id primitive.ObjectID) (*core.TTP, error)
	create       func(ctx context.Context, p *core.Principal, ttp *core.TTP) error
	tag          func(ctx context.Context, id primitive.ObjectID, tags []string) (*core.TTP, error)
	generateTags func(ctx context.Context, id primitive.ObjectID) (*core.TTP, error)
	delete       func(ctx context.Context, p *core.Principal, id primitive.ObjectID) error
	search       func(ctx context.Context, q *core.SearchQuery) (*core.SearchResult[core.TTP], error)

	calls int
}

func (m *mockTTPService) List(ctx context.Context) ([]core.TTP, error) {
	m.calls++
	if m.list != nil {
		return m.list(ctx)
	}
	return []core.TTP{}, nil
}

func (m *mockTTPService) Get(ctx context.Context, id primitive.ObjectID) (*core.TTP, error) {
	m.calls++
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, core.ErrNotFound
}

func (m *mockTTPService) Create(ctx context.Context, p *core.Principal, ttp *core.TTP) error {
	m.calls++
	if m.create != nil {
		return m.create(ctx, p, ttp)
	}
	return nil
}

func (m *mockTTPService) Tag(ctx context.Context, id primitive.ObjectID, tags []string) (*core.TTP, error) {
	m.calls++
	if m.tag != nil {
		return m.tag(ctx, id, tags)
	}
	return nil, core.ErrNotFound
}

func (m *mockTTPService) GenerateTags(ctx context.Context, id primitive.ObjectID) (*core.TTP, error) {
	m.calls++
	if m.generateTags != nil {
		return m.generateTags(ctx, id)
	}
	return nil, core.ErrNotFound
}

func (m *mockTTPService) Delete(ctx context.Context, p *core.Principal, id primitive.ObjectID) error {
	m.calls++
	if m.delete != nil {
		return m.delete(ctx, p, id)
	}
	return nil
}

func (m *mockTTPService) Search(ctx context.Context, q *core.SearchQuery) (*core.SearchResult[core.TTP], error) {
	m.calls++
	if m.search != nil {
		return m.search(ctx, q)
	}
	return &core.SearchResult[core.TTP]{Items: []core.TTP{}}, nil
}

type mockUserLookup struct {
	users map[primitive.ObjectID]*core.User
	err   error
}

func (m *mockUserLookup) GetUser(ctx context.Context, id primitive.ObjectID) (*core.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

type mockHealth struct{ err error }

func (m mockHealth) HealthCheck(ctx context.Context) error { return m.err }

// testEnv bundles an API with its mocks and a few pre-registered users
type testEnv struct {
	api     *API
	groups  *mockGroupService
	ttps    *mockTTPService
	users   *mockUserLookup
	admin   *core.User
	analyst *core.User
	viewer  *core.User
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.API.Port = 5000
	cfg.API.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.API.RateLimit.RequestsPerSecond = 10000
	cfg.API.RateLimit.Burst = 10000
	cfg.API.RateLimit.Redis.Window = time.Minute
	cfg.API.RateLimit.Redis.Limit = 10000
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.JWTExpiry = time.Hour
	cfg.Auth.Issuer = "yeti"
	cfg.Search.DefaultRange = 50
	cfg.Search.MaxRange = 1000
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, newTestConfig(), nil, nil)
}

func newTestEnvWith(t *testing.T, cfg *config.Config, counter WindowCounter, health HealthChecker) *testEnv {
	t.Helper()

	mkUser := func(name, role string) *core.User {
		return &core.User{ID: primitive.NewObjectID(), Username: name, Roles: []string{role}, Enabled: true}
	}
	env := &testEnv{
		groups:  &mockGroupService{},
		ttps:    &mockTTPService{},
		admin:   mkUser("root", core.RoleAdmin),
		analyst: mkUser("alice", core.RoleAnalyst),
		viewer:  mkUser("victor", core.RoleViewer),
	}
	env.users = &mockUserLookup{users: map[primitive.ObjectID]*core.User{
		env.admin.ID:   env.admin,
		env.analyst.ID: env.analyst,
		env.viewer.ID:  env.viewer,
	}}

	env.api = NewAPI(Deps{
		Groups:  env.groups,
		TTPs:    env.ttps,
		Users:   env.users,
		Health:  health,
		Counter: counter,
	}, cfg, zap.NewNop().Sugar())
	t.Cleanup(func() { _ = env.api.Stop(context.Background()) })
	return env
}

func (e *testEnv) token(t *testing.T, u *core.User) string {
	t.Helper()
	tok, err := GenerateToken(u, testSecret, "yeti", time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request as user (nil for anonymous) and returns the recorder
func (e *testEnv) do(t *testing.T, u *core.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, u))
	}
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func TestNewAPI_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() {
		NewAPI(Deps{}, newTestConfig(), zap.NewNop().Sugar())
	})
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnvWith(t, newTestConfig(), nil, mockHealth{})
	rr := env.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	down := newTestEnvWith(t, newTestConfig(), nil, mockHealth{err: errors.New("no reachable servers")})
	rr = down.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "no reachable servers")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, env.admin, http.MethodGet, "/api/groups", nil)

	rr := env.do(t, nil, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "yeti_http_requests_total")
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123\nforged")
	rr := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "abc-123forged", rr.Header().Get("X-Request-ID"))

	rr = env.do(t, nil, http.MethodGet, "/health", nil)
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestMetricsMiddleware_MeasuresFromTraceStart(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	a := &API{logger: zap.New(obs).Sugar()}
	h := a.metricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req = req.WithContext(WithTraceStart(req.Context(), time.Now().Add(-2*time.Second)))
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request_completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.GreaterOrEqual(t, fields["duration_ms"], int64(2000))
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "unmatched", fields["route"])
}

func TestMetricsMiddleware_WithoutTraceStart(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	a := &API{logger: zap.New(obs).Sugar()}
	h := a.metricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	entries := logs.FilterMessage("request_completed").All()
	require.Len(t, entries, 1)
	assert.Less(t, entries[0].ContextMap()["duration_ms"], int64(2000))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/groups", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/groups", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
