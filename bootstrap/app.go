package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"yeti/api"
	"yeti/config"
	"yeti/service"
	"yeti/util"
	"yeti/util/goroutine"

	"go.uber.org/zap"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

// App holds all application components and manages their lifecycle.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Storage   *Storage
	Groups    *service.GroupAdminService
	TTPs      *service.TTPService
	APIServer *api.API

	serviceWg    sync.WaitGroup
	shutdownOnce sync.Once
}

// NewApp loads configuration, connects storage and builds the services and
// HTTP API. configPath may be empty.
func NewApp(configPath string) (*App, error) {
	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := InitConfig(configPath, sugar)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := InitStorage(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}

	return newApp(cfg, logger, sugar, store), nil
}

// newApp wires services and the API on top of an initialized Storage.
func newApp(cfg *config.Config, logger *zap.Logger, sugar *zap.SugaredLogger, store *Storage) *App {
	regex := util.NewRegexValidatorWithLength(cfg.Search.MaxRegexLength)
	limits := service.SearchLimits{
		DefaultRange: cfg.Search.DefaultRange,
		MaxRange:     cfg.Search.MaxRange,
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Sugar:   sugar,
		Storage: store,
		Groups:  service.NewGroupAdminService(store.Groups, store.Users, regex, limits, sugar),
		TTPs:    service.NewTTPService(store.TTPs, regex, limits, sugar),
	}

	deps := api.Deps{
		Groups: app.Groups,
		TTPs:   app.TTPs,
		Users:  store.Users,
		Health: store.MongoDB,
	}
	// A nil *RedisStore must not become a non-nil interface
	if store.Redis != nil {
		deps.Counter = store.Redis
	}
	app.APIServer = api.NewAPI(deps, cfg, sugar)

	return app
}

// Start launches the API server in the background.
func (a *App) Start() error {
	if a.APIServer == nil {
		return fmt.Errorf("API server not initialized")
	}

	a.serviceWg.Add(1)
	goroutine.Go("api-server", a.Sugar, func() {
		defer a.serviceWg.Done()
		if err := a.APIServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorw("API server error", "error", err)
		}
	})

	a.Sugar.Infow("Yeti started", "port", a.Config.API.Port)
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
}

// Shutdown stops the API server and closes storage. It is safe to call more
// than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.APIServer != nil {
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("API server shutdown failed", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.Sugar.Info("API server stopped")
	case <-ctx.Done():
		a.Sugar.Warn("API server shutdown timed out")
	}

	if a.Storage != nil {
		if err := a.Storage.Close(ctx); err != nil {
			a.Sugar.Errorw("Storage shutdown failed", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}
