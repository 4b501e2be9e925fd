package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/config"
	"github.com/hyperjump/capcluster/internal/ingest"
	"github.com/hyperjump/capcluster/internal/metrics"
	"github.com/hyperjump/capcluster/internal/server"
	"github.com/hyperjump/capcluster/internal/session"
	"github.com/hyperjump/capcluster/internal/storage"
	"github.com/hyperjump/capcluster/internal/watcher"
	"github.com/hyperjump/capcluster/pkg/utils"
)

func newServerCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

// components are the long-lived parts of a running server.
type components struct {
	Store    storage.Storage
	Manager  *session.Manager
	Ingester *ingest.Ingester
	Metrics  http.Handler
}

func (c *components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initializeComponents opens storage, builds the session manager and restores
// persisted sessions.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	store, err := storage.Open(storage.Options{
		Backend:      cfg.Storage.Backend,
		DatabasePath: cfg.Storage.DatabasePath,
		BadgerPath:   cfg.Storage.BadgerPath,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	c.Store = store

	var recorder metrics.Recorder = metrics.NewNop()
	if cfg.Metrics.EnabledOrDefault() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom, err := metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		recorder = prom
		c.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	cl := cfg.Clustering
	mgrOpts := []session.ManagerOption{
		session.WithFamilies(cl.Families...),
		session.WithManagerLogger(logger),
		session.WithSessionOptions(
			session.WithDistance(cl.Distance),
			session.WithDefaultCapacity(cl.DefaultCapacity),
			session.WithMaxIterations(cl.MaxIterations),
			session.WithNormalize(cl.Normalize),
			session.WithMetricWorkers(cl.MetricWorkers),
			session.WithLogger(logger),
			session.WithRecorder(recorder),
		),
	}
	if store != nil {
		mgrOpts = append(mgrOpts, session.WithStore(store))
	}
	mgr, err := session.NewManager(mgrOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	if _, err := mgr.Restore(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.Manager = mgr
	c.Ingester = ingest.New(mgr, ingest.WithLogger(logger))
	return c, nil
}

func runServer(ctx context.Context, configPath string, debug bool) error {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Strings("families", cfg.Clustering.Families),
		zap.Bool("debug", debugMode),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	srvOpts := []server.Option{}
	if comps.Metrics != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(comps.Metrics))
	}
	if len(cfg.Watch.Directories) > 0 {
		inbox := watcher.New(watcher.Config{
			Directories: cfg.Watch.Directories,
			Extensions:  cfg.Watch.Extensions,
			Recursive:   cfg.Watch.RecursiveOrDefault(),
		}, comps.Ingester.HandleFile, watcher.WithLogger(logger))
		if err := inbox.Start(ctx); err != nil {
			return fmt.Errorf("failed to start inbox watcher: %w", err)
		}
		defer inbox.Stop()
		srvOpts = append(srvOpts, server.WithInbox(inbox))
	}

	srv := server.NewServer(comps.Manager, cfg, logger, srvOpts...)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
