package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
	"github.com/kirillkom/rx-crosscheck/internal/core/usecase"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/queue/nats"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/storage/minio"
)

type Options struct {
	Observer ports.EvaluationObserver
	Hooks    resilience.Hooks
}

type App struct {
	Config config.Config

	Engine  *Engine
	Queue   ports.MessageQueue
	Repo    ports.EvaluationRepository
	Archive ports.ReportArchive
	Service *usecase.EvaluationService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	executor := NewExecutor(cfg, opts.Hooks)
	engine, err := NewEngine(cfg, executor, opts.Observer)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewEvaluationRepository(db)

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init report archive: %w", err)
	}

	var queue *nats.Queue
	if cfg.NATSURL != "" {
		q, err := nats.New(cfg.NATSURL, nats.Subjects{
			EvaluationRequested: cfg.NATSRequestSubject,
			ReviewRequired:      cfg.NATSReviewSubject,
		}, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		queue = q
	}

	var messageQueue ports.MessageQueue
	if queue != nil {
		messageQueue = queue
	}
	service := usecase.NewEvaluationService(repo, engine.Orchestrator, messageQueue, archive)

	return &App{
		Config:  cfg,
		Engine:  engine,
		Queue:   messageQueue,
		Repo:    repo,
		Archive: archive,
		Service: service,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newArchive(ctx context.Context, cfg config.Config) (ports.ReportArchive, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveMinIO:
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			Region:    cfg.MinIORegion,
			Bucket:    cfg.MinIOBucket,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
		})
	case config.ArchiveLocal:
		return localfs.New(cfg.StoragePath)
	default:
		return nil, nil
	}
}
