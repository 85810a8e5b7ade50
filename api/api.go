// Package api exposes the yeti group administration and TTP endpoints over HTTP
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"yeti/config"
	"yeti/core"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// GroupService is the group administration surface used by the handlers
type GroupService interface {
	List(ctx context.Context, p *core.Principal) ([]core.Group, error)
	Get(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error)
	Toggle(ctx context.Context, p *core.Principal, gid primitive.ObjectID) (*core.Group, error)
	Remove(ctx context.Context, p *core.Principal, gid primitive.ObjectID) error
	AddMember(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error)
	RemoveMember(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error)
	ToggleAdmin(ctx context.Context, p *core.Principal, gid, uid primitive.ObjectID) (*core.Group, error)
	Search(ctx context.Context, p *core.Principal, q *core.SearchQuery) (*core.SearchResult[core.Group], error)
}

// TTPService is the TTP surface used by the handlers
type TTPService interface {
	List(ctx context.Context) ([]core.TTP, error)
	Get(ctx context.Context, id primitive.ObjectID) (*core.TTP, error)
	Create(ctx context.Context, p *core.Principal, ttp *core.TTP) error
	Tag(ctx context.Context, id primitive.ObjectID, tags []string) (*core.TTP, error)
	GenerateTags(ctx context.Context, id primitive.ObjectID) (*core.TTP, error)
	Delete(ctx context.Context, p *core.Principal, id primitive.ObjectID) error
	Search(ctx context.Context, q *core.SearchQuery) (*core.SearchResult[core.TTP], error)
}

// UserLookup resolves the subject of a bearer token
type UserLookup interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*core.User, error)
}

// HealthChecker reports database reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps groups the collaborators the API needs
type Deps struct {
	Groups GroupService
	TTPs   TTPService
	Users  UserLookup
	Health HealthChecker
	// Counter enables the shared Redis rate limit window when non-nil
	Counter WindowCounter
}

// API holds the API server
type API struct {
	router  *mux.Router
	server  *http.Server
	groups  GroupService
	ttps    TTPService
	users   UserLookup
	health  HealthChecker
	limiter *RateLimiter
	config  *config.Config
	logger  *zap.SugaredLogger
}

// NewAPI creates a new API server
func NewAPI(deps Deps, cfg *config.Config, logger *zap.SugaredLogger) *API {
	if deps.Groups == nil || deps.TTPs == nil || deps.Users == nil {
		panic("api: group service, TTP service and user lookup are required")
	}
	if cfg == nil || logger == nil {
		panic("api: config and logger are required")
	}

	a := &API{
		router:  mux.NewRouter(),
		groups:  deps.Groups,
		ttps:    deps.TTPs,
		users:   deps.Users,
		health:  deps.Health,
		limiter: NewRateLimiter(cfg, deps.Counter, logger),
		config:  cfg,
		logger:  logger,
	}
	a.setupRoutes()
	a.server = a.newServer()
	return a
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.metricsMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	// Preflight requests are answered by corsMiddleware
	a.router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	a.router.HandleFunc("/health", a.healthCheck).Methods(http.MethodGet)
	a.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	authed := a.router.PathPrefix("/api").Subrouter()
	authed.Use(a.jwtAuthMiddleware)

	groups := authed.PathPrefix("/groups").Subrouter()
	groups.HandleFunc("", a.listGroups).Methods(http.MethodGet)
	groups.HandleFunc("/", a.listGroups).Methods(http.MethodGet)
	groups.Handle("/search", a.RequirePermission(core.PermRead)(http.HandlerFunc(a.searchGroups))).Methods(http.MethodPost)
	groups.Handle("/toggle/{id}", a.RequireRole(core.RoleAdmin)(http.HandlerFunc(a.toggleGroup))).Methods(http.MethodPost)
	groups.HandleFunc("/add-member", a.addGroupMember).Methods(http.MethodPost)
	groups.HandleFunc("/remove-member", a.removeGroupMember).Methods(http.MethodPost)
	groups.HandleFunc("/toggle-admin", a.toggleGroupAdmin).Methods(http.MethodPost)
	groups.HandleFunc("/{id}", a.getGroup).Methods(http.MethodGet)
	groups.HandleFunc("/{id}", a.removeGroup).Methods(http.MethodDelete)

	read := a.RequirePermission(core.PermRead)
	write := a.RequirePermission(core.PermWrite)

	ttps := authed.PathPrefix("/ttps").Subrouter()
	ttps.Handle("", read(http.HandlerFunc(a.listTTPs))).Methods(http.MethodGet)
	ttps.Handle("", write(http.HandlerFunc(a.createTTP))).Methods(http.MethodPost)
	ttps.Handle("/killchain", read(http.HandlerFunc(a.listKillChain))).Methods(http.MethodGet)
	ttps.Handle("/search", read(http.HandlerFunc(a.searchTTPs))).Methods(http.MethodPost)
	ttps.Handle("/{id}", read(http.HandlerFunc(a.getTTP))).Methods(http.MethodGet)
	ttps.Handle("/{id}", write(http.HandlerFunc(a.deleteTTP))).Methods(http.MethodDelete)
	ttps.Handle("/{id}/tags", write(http.HandlerFunc(a.tagTTP))).Methods(http.MethodPost)
	ttps.Handle("/{id}/generate-tags", write(http.HandlerFunc(a.generateTTPTags))).Methods(http.MethodPost)
}

// Handler returns the routed handler, used by tests and embedding servers
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) newServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.API.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Start starts the API server, with TLS when configured
func (a *API) Start() error {
	a.logger.Infow("API server listening", "addr", a.server.Addr, "tls", a.config.API.TLS)
	if a.config.API.TLS {
		return a.server.ListenAndServeTLS(a.config.API.CertFile, a.config.API.KeyFile)
	}
	return a.server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	a.limiter.Close()
	return a.server.Shutdown(ctx)
}
