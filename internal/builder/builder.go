package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/concentration/internal/cache"
	"github.com/park285/concentration/internal/config"
	"github.com/park285/concentration/internal/mailer"
	"github.com/park285/concentration/internal/msgcat"
	svc "github.com/park285/concentration/internal/service/concentration"
	"github.com/park285/concentration/internal/store"
	"github.com/park285/concentration/internal/tasks"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Service *svc.Service
	Repo    store.Repository
	Redis   *redis.Client
	Stats   *cache.RedisStats
	Queue   *tasks.Queue
	Worker  *tasks.Worker
	Mailer  mailer.Mailer
	Catalog *msgcat.Catalog
}

// New wires storage, cache, task queue, mailer and the game service from cfg.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Redis carries the stats cache and the task queue.
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the stats cache and task queue")
	}
	rdb, err := cache.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	// Repository (in-memory when no database is configured)
	var repo store.Repository
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("repository_in_memory", zap.String("reason", "DATABASE_URL not set"))
		repo = store.NewMemoryRepository()
	} else {
		repo, err = store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("init repository: %w", err)
		}
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = rdb.Close()
		_ = repo.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var mail mailer.Mailer
	if strings.TrimSpace(cfg.MailRelayURL) == "" {
		mail = mailer.NewLogMailer(logger.Named("mail"))
	} else {
		mail = mailer.NewRelayClient(cfg.MailRelayURL, mailer.WithToken(cfg.MailRelayToken))
	}

	stats := cache.NewRedisStats(rdb, "", 0)
	queue := tasks.NewQueue(rdb, cfg.TaskQueueKey)

	service, err := svc.NewService(repo, catalog,
		svc.Config{DefaultTopScores: cfg.DefaultTopScores, MailFrom: cfg.MailFrom},
		svc.WithStats(stats),
		svc.WithTrigger(queue),
		svc.WithMailer(mail),
		svc.WithLogger(logger.Named("game")),
	)
	if err != nil {
		_ = rdb.Close()
		_ = repo.Close()
		return nil, err
	}

	worker := tasks.NewWorker(queue, logger.Named("tasks"))
	worker.Handle(tasks.RecomputeAverageMoves, func(ctx context.Context, _ tasks.Task) error {
		return service.RecomputeAverageMoves(ctx)
	})

	return &Deps{
		Service: service,
		Repo:    repo,
		Redis:   rdb,
		Stats:   stats,
		Queue:   queue,
		Worker:  worker,
		Mailer:  mail,
		Catalog: catalog,
	}, nil
}

func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Repo != nil {
		errs = append(errs, d.Repo.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}
