package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/rx-crosscheck/internal/adapters/http"
	"github.com/kirillkom/rx-crosscheck/internal/adapters/http/openapi"
	"github.com/kirillkom/rx-crosscheck/internal/bootstrap"
	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/observability/logging"
	"github.com/kirillkom/rx-crosscheck/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer: metrics.NewEvaluationMetrics(httpMetrics.Registry(), serviceName),
		Hooks:    bootstrap.ResilienceHooks(metrics.NewResilienceMetrics(httpMetrics.Registry(), serviceName)),
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	spec, err := openapi.Load()
	if err != nil {
		slog.Error("openapi_load_failed", "error", err)
		os.Exit(1)
	}

	router := httpadapter.NewRouter(cfg, app.Service,
		httpadapter.WithOpenAPISpec(spec),
		httpadapter.WithReportArchive(app.Archive),
		httpadapter.WithMetricsHandler(httpMetrics.Handler()),
	).Handler()

	// Synchronous evaluations wait for two reviewers and the comparison agent.
	writeTimeout := 3*cfg.ProviderTimeout() + 30*time.Second
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           httpMetrics.Middleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening",
			"port", cfg.APIPort,
			"primary_reviewer", cfg.PrimaryReviewer,
			"secondary_reviewer", cfg.SecondaryReviewer,
			"comparator", cfg.ComparatorProvider,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_failed", "error", err)
	}
}
