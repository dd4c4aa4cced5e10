package service

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/okian/puckcast/internal/adapters/cache"
	"github.com/okian/puckcast/internal/adapters/nhl"
	"github.com/okian/puckcast/internal/adapters/repository"
	"github.com/okian/puckcast/internal/config"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

// FromConfig builds a Service from cfg. Postgres backs the store when a
// database URL is set and Redis backs the prediction cache and training lock
// when an address is set; otherwise the in-memory store runs without either.
// The returned cleanup releases connections and is safe to call after Stop.
func FromConfig(ctx context.Context, cfg *config.Config, extra ...Option) (*Service, func(), error) {
	const op = "service.FromConfig"
	log := logger.Named("bootstrap")

	policy, ok := model.PolicyByName(cfg.CompletionPolicy)
	if !ok {
		return nil, nil, model.Kind(op, model.ErrData, "unknown completion policy %q", cfg.CompletionPolicy)
	}

	var (
		closers []func() error
		store   repository.Store
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn(ctx, "closing resource", logger.Error(err))
			}
		}
	}

	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL,
			repository.WithLogger(logger.Named("postgres")))
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		closers = append(closers, pg.Close)
		store = pg
		log.Info(ctx, "using postgres store")
	} else {
		store = repository.NewMemoryStore()
		log.Warn(ctx, "database_url not set; using in-memory store")
	}

	opts := []Option{
		WithStore(store),
		WithUpstream(nhl.NewClient(
			nhl.WithWebBaseURL(cfg.NHLWebBaseURL),
			nhl.WithStatsBaseURL(cfg.NHLStatsBaseURL),
			nhl.WithTimeout(cfg.HTTPTimeout()),
			nhl.WithLogger(logger.Named("nhl")),
		)),
		WithArtifactDir(cfg.ArtifactDir),
		WithModelName(cfg.ModelName),
		WithForestParams(cfg.ForestTrees, cfg.ForestMaxDepth, cfg.ForestSeed),
		WithValidation(cfg.ValidationRatio, cfg.SplitSeed),
		WithExplainerParams(cfg.ExplainerSamples, cfg.ExplainerSeed, cfg.ExplainerFeatures, cfg.ExplainTopK),
		WithCompletionPolicy(policy),
		WithDefaultSeasons(cfg.Seasons()),
		WithQueueSize(cfg.TrainingQueueSize),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			cleanup()
			return nil, nil, model.Wrap(op, model.ErrStorage, errors.Join(errors.New("redis ping"), err))
		}
		closers = append(closers, rdb.Close)
		opts = append(opts,
			WithPredictionCache(cache.NewPredictionCache(rdb, cfg.PredictionCacheTTL())),
			WithTrainingLock(cache.NewTrainingLock(rdb, cache.DefaultLockTTL)),
		)
		log.Info(ctx, "using redis cache and training lock", logger.String("addr", cfg.RedisAddr))
	}

	return New(append(opts, extra...)...), cleanup, nil
}
