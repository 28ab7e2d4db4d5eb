package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/rx-crosscheck/internal/bootstrap"
	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/observability/logging"
	"github.com/kirillkom/rx-crosscheck/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer: metrics.NewEvaluationMetrics(workerMetrics.Registry(), serviceName),
		Hooks:    bootstrap.ResilienceHooks(metrics.NewResilienceMetrics(workerMetrics.Registry(), serviceName)),
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue == nil {
		slog.Error("worker_requires_queue", "hint", "set NATS_URL")
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSRequestSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Queue.SubscribeEvaluationRequested(ctx, func(handlerCtx context.Context, evaluationID string) error {
		// Shutdown stops new deliveries; a job already taken runs to its own deadline.
		processCtx, cancel := context.WithTimeout(context.WithoutCancel(handlerCtx), jobTimeout)
		defer cancel()

		if evaluation, err := app.Service.Get(processCtx, evaluationID); err == nil {
			workerMetrics.ObserveQueueLag(evaluation.CreatedAt, time.Now())
		}

		done := workerMetrics.TrackJob()
		err := app.Service.ProcessByID(processCtx, evaluationID)
		done(err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
