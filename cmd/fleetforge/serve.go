package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"fleetforge/internal/config"
	"fleetforge/internal/handler"
	"fleetforge/internal/hub"
	"fleetforge/internal/logging"
	"fleetforge/internal/observability"
	"fleetforge/internal/repository/sqlite"
	"fleetforge/internal/service"
	"fleetforge/internal/topology"
	"fleetforge/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.WithComponent("server")
		if path == "" {
			logger.Info("No config file found, using defaults")
		} else {
			logger.WithField("config_file", path).Info("Loaded config")
		}
		logger.Info(cfg.Summary())

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.WithComponent("server")

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing)

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.WithField("path", cfg.Database.Path).Info("Database opened")

	var (
		collector *observability.Collector
		observer  handler.RequestObserver
		opts      []topology.Option
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if collector, err = observability.NewCollector(reg); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		observer = collector
		opts = append(opts, topology.WithRecorder(collector))
	}

	eventBus := service.NewEventBus()
	clusterSvc := service.NewClusterService(repo, eventBus)
	api := handler.API{
		Nodes:         service.NewNodeService(repo, topology.NewReconciler(repo, opts...), eventBus),
		Clusters:      clusterSvc,
		Releases:      service.NewReleaseService(repo, eventBus),
		Notifications: service.NewNotificationService(repo, eventBus),
	}

	if cfg.Fixtures.Path != "" {
		if _, err := importFile(ctx, clusterSvc, cfg.Fixtures.Path); err != nil {
			return fmt.Errorf("import fixtures: %w", err)
		}
		if cfg.Fixtures.Watch {
			w := watcher.New(cfg.Fixtures.Path, func(path string) {
				if _, err := importFile(ctx, clusterSvc, path); err != nil {
					logging.WithComponent("fixtures").WithError(err).Warn("Fixture reload failed")
				}
			})
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.WithError(err).Warn("Fixture watcher stopped")
				}
			}()
		}
	}

	sseHub := hub.New()
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for {
			select {
			case event := <-eventChan:
				sseHub.Broadcast(event)
			case <-ctx.Done():
				return
			}
		}
	}()
	api.Events = sseHub

	mux := handler.NewMux(api)
	if collector != nil {
		mux.Handle("GET "+cfg.Metrics.Path, collector.Handler())
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Chain(mux, handler.Recover, handler.CORS, handler.Logger(observer)),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server shutdown error")
	}
	logger.Info("Server stopped")
	return nil
}

// exitOnSignal is used by one-shot commands that should stop cleanly on ^C
func exitOnSignal() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
