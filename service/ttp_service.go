package service

import (
	"context"

	"yeti/core"
	"yeti/metrics"
	"yeti/storage"
	"yeti/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TTPStorage defines the TTP storage operations needed by TTPService
type TTPStorage interface {
	GetTTPs(ctx context.Context) ([]core.TTP, error)
	GetTTP(ctx context.Context, id primitive.ObjectID) (*core.TTP, error)
	CreateTTP(ctx context.Context, ttp *core.TTP) error
	AddTTPTags(ctx context.Context, id primitive.ObjectID, tags []string) error
	DeleteTTP(ctx context.Context, id primitive.ObjectID) error
	SearchTTPs(ctx context.Context, filter bson.M, offset, limit int64) ([]core.TTP, int64, error)
}

// TTPService manages kill-chain classified TTP entities
type TTPService struct {
	ttps    TTPStorage
	filters *storage.FilterBuilder
	limits  SearchLimits
	logger  *zap.SugaredLogger
}

// NewTTPService creates a new TTPService
func NewTTPService(ttps TTPStorage, regex *util.RegexValidator, limits SearchLimits, logger *zap.SugaredLogger) *TTPService {
	if ttps == nil {
		panic("ttpStorage is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &TTPService{
		ttps:    ttps,
		filters: storage.NewFilterBuilder(storage.TTPSearchFields, regex),
		limits:  limits,
		logger:  logger,
	}
}

// List returns every TTP ordered by kill chain code then name
func (s *TTPService) List(ctx context.Context) ([]core.TTP, error) {
	return s.ttps.GetTTPs(ctx)
}

// Get returns a single TTP
func (s *TTPService) Get(ctx context.Context, id primitive.ObjectID) (*core.TTP, error) {
	return s.ttps.GetTTP(ctx, id)
}

// Create validates and stores a new TTP
func (s *TTPService) Create(ctx context.Context, p *core.Principal, ttp *core.TTP) error {
	if err := s.ttps.CreateTTP(ctx, ttp); err != nil {
		return err
	}
	metrics.TTPsImported.Inc()
	s.logger.Infow("TTP created",
		"ttp_id", ttp.ID.Hex(),
		"name", ttp.Name,
		"killchain", ttp.KillChain.Label(),
		"actor", actorName(p))
	return nil
}

// Tag merges tags into the TTP and returns the reloaded record
func (s *TTPService) Tag(ctx context.Context, id primitive.ObjectID, tags []string) (*core.TTP, error) {
	if err := s.ttps.AddTTPTags(ctx, id, tags); err != nil {
		return nil, err
	}
	return s.ttps.GetTTP(ctx, id)
}

// GenerateTags persists the TTP's derived tags and returns the reloaded record
func (s *TTPService) GenerateTags(ctx context.Context, id primitive.ObjectID) (*core.TTP, error) {
	ttp, err := s.ttps.GetTTP(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Tag(ctx, id, ttp.GenerateTags())
}

// Delete removes a TTP
func (s *TTPService) Delete(ctx context.Context, p *core.Principal, id primitive.ObjectID) error {
	if err := s.ttps.DeleteTTP(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("TTP deleted", "ttp_id", id.Hex(), "actor", actorName(p))
	return nil
}

// Search runs a paginated TTP search. TTP searches are not principal-scoped.
func (s *TTPService) Search(ctx context.Context, q *core.SearchQuery) (*core.SearchResult[core.TTP], error) {
	if err := q.Normalize(s.limits.DefaultRange, s.limits.MaxRange); err != nil {
		metrics.SearchQueries.WithLabelValues(core.CollectionTTPs, "invalid").Inc()
		return nil, err
	}

	filter, err := s.filters.Build(q.Filter, q.Regex)
	if err != nil {
		metrics.SearchQueries.WithLabelValues(core.CollectionTTPs, "invalid").Inc()
		s.logger.Warnw("Rejected TTP search filter", "error", err)
		return nil, err
	}

	ttps, total, err := s.ttps.SearchTTPs(ctx, filter, q.Offset(), int64(q.Range))
	if err != nil {
		metrics.SearchQueries.WithLabelValues(core.CollectionTTPs, "error").Inc()
		return nil, err
	}
	metrics.SearchQueries.WithLabelValues(core.CollectionTTPs, "ok").Inc()
	return &core.SearchResult[core.TTP]{Items: ttps, Total: total}, nil
}

func actorName(p *core.Principal) string {
	if p == nil {
		return "system"
	}
	return p.Username
}
