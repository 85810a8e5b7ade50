// Package cmd provides the yeti command-line interface: TTP import and
// listing, group bootstrap and token issuing.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"yeti/config"
	"yeti/core"
	"yeti/service"
	"yeti/storage"
	"yeti/util"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags shared by every command
var (
	outputJSON bool
	configFile string
	noColor    bool
	quiet      bool
)

const (
	maxImportFileSize = 10 * 1024 * 1024
	defaultTimeout    = 2 * time.Minute
)

type ttpStore interface {
	List(ctx context.Context) ([]core.TTP, error)
	Create(ctx context.Context, p *core.Principal, ttp *core.TTP) error
}

type groupStore interface {
	CreateGroup(ctx context.Context, group *core.Group) error
}

type userStore interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*core.User, error)
}

// cliEnv is what a command needs once configuration and storage are up
type cliEnv struct {
	cfg    *config.Config
	ttps   ttpStore
	groups groupStore
	users  userStore
	logger *zap.SugaredLogger
}

// openEnv connects to MongoDB using the --config file. Tests replace it.
var openEnv = func(ctx context.Context) (*cliEnv, func(), error) {
	cfg, err := config.LoadConfigFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar := logger.Sugar()

	mongoDB, err := storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.MaxPoolSize, cfg.MongoDB.Timeout, sugar)
	if err != nil {
		return nil, nil, err
	}

	ttps := service.NewTTPService(
		storage.NewTTPStorage(mongoDB),
		util.NewRegexValidatorWithLength(cfg.Search.MaxRegexLength),
		service.SearchLimits{DefaultRange: cfg.Search.DefaultRange, MaxRange: cfg.Search.MaxRange},
		sugar,
	)

	cleanup := func() {
		if err := mongoDB.Close(context.Background()); err != nil {
			sugar.Warnw("Failed to close MongoDB connection during cleanup", "error", err)
		}
		_ = logger.Sync()
	}

	return &cliEnv{
		cfg:    cfg,
		ttps:   ttps,
		groups: storage.NewGroupStorage(mongoDB),
		users:  storage.NewUserStorage(mongoDB),
		logger: sugar,
	}, cleanup, nil
}

// withEnv runs fn with a timeout context and an opened cliEnv
func withEnv(fn func(ctx context.Context, env *cliEnv) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	env, cleanup, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, env)
}

// addPersistentFlags registers the flags every top-level command accepts
func addPersistentFlags(c *cobra.Command) {
	c.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	c.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: ./config.yaml or ./config/config.yaml)")
	c.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	c.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
	c.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	}
}

// outputAsJSON writes data as indented JSON.
func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func parseUserID(raw, flag string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("--%s must be a 24-character hex ObjectID, got %q", flag, raw)
	}
	return id, nil
}
