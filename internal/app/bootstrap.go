package service

import (
	"context"
	"fmt"

	"github.com/okian/courtside/internal/adapters/mq/worker"
	"github.com/okian/courtside/internal/adapters/notify"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/adapters/repository/dynamo"
	"github.com/okian/courtside/internal/adapters/repository/sqlite"
	"github.com/okian/courtside/internal/config"
	"github.com/okian/courtside/internal/domain/eligibility"
	"github.com/okian/courtside/internal/domain/rating"
	"github.com/okian/courtside/internal/domain/retry"
	"github.com/okian/courtside/pkg/logger"
)

// FromConfig translates cfg into service options.
func FromConfig(cfg *config.Config) []Option {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	if d := cfg.RetryBackoff(); d > 0 {
		policy.InitialDelay = d
	}
	return []Option{
		WithWorkerCount(cfg.NotifyWorkers),
		WithQueueSize(cfg.NotifyQueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithRetryPolicy(policy),
		WithSkillBounds(eligibility.Bounds{Min: cfg.SkillMin, Max: cfg.SkillMax}),
		WithRatingModel(rating.NewModel(rating.WithKFactor(cfg.KFactor), rating.WithFloor(cfg.RatingFloor))),
		WithDefaultElo(cfg.DefaultElo),
		WithMaxListLimit(cfg.MaxListLimit),
		WithMaxLeaderboard(cfg.MaxLeaderboardSize),
	}
}

// OpenStore opens the backend selected by cfg.Store.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return repository.NewMemoryStore(), nil
	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case config.StoreDynamoDB:
		st, err := dynamo.Connect(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint, dynamo.WithTablePrefix(cfg.DynamoTablePrefix))
		if err != nil {
			return nil, fmt.Errorf("connect dynamodb: %w", err)
		}
		// Local endpoints (dynamodb-local, localstack) start empty.
		if cfg.DynamoEndpoint != "" {
			if err := st.CreateTables(ctx); err != nil {
				return nil, fmt.Errorf("create dynamodb tables: %w", err)
			}
			log.Info(ctx, "dynamodb tables ready", logger.String("endpoint", cfg.DynamoEndpoint))
		}
		return st, nil
	}
	return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
}

// OpenNotifier returns the AMQP publisher when an AMQP URL is configured and
// the log notifier otherwise.
func OpenNotifier(cfg *config.Config, log logger.Logger) (worker.Notifier, error) {
	if cfg.AMQPURL == "" {
		return notify.NewLog(log.Named("notify")), nil
	}
	p, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return p, nil
}
