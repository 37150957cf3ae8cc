package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tinfoilsh/confidential-planner/api"
	"github.com/tinfoilsh/confidential-planner/cache"
	"github.com/tinfoilsh/confidential-planner/config"
	"github.com/tinfoilsh/confidential-planner/llm"
	"github.com/tinfoilsh/confidential-planner/metrics"
	"github.com/tinfoilsh/confidential-planner/pipeline"
	"github.com/tinfoilsh/confidential-planner/planner"
	"github.com/tinfoilsh/confidential-planner/publish"
	"github.com/tinfoilsh/confidential-planner/store"
	"github.com/tinfoilsh/confidential-planner/tasks"
)

const (
	shutdownTimeout = 30 * time.Second
	janitorInterval = time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogFormat)
			return serve(cmd.Context(), cfg)
		},
	}
}

// newPlanner wires the generation backend through the stage runner
func newPlanner(cfg *config.Config, m *metrics.Metrics) (*planner.Planner, string, error) {
	chat, backend, err := llm.NewChatClient(llm.BackendConfig{
		Provider: cfg.BackendProvider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, "", err
	}

	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxRetries
	policy.Backoff = llm.LinearBackoff(cfg.RetryBackoff)

	client := llm.NewClient(chat, cfg.Model,
		llm.WithSystemPrompt(planner.SystemPrompt),
		llm.WithTemperature(cfg.Temperature),
		llm.WithTimeout(cfg.Timeout),
		llm.WithRetryPolicy(policy),
		llm.WithObserver(m),
	)

	runner := pipeline.NewRunner(client,
		pipeline.WithInterStageDelay(cfg.StageDelay),
		pipeline.WithObserver(m),
	)
	return planner.New(runner), backend, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, m := metrics.NewRegistry()

	p, backend, err := newPlanner(cfg, m)
	if err != nil {
		return err
	}

	var (
		records   cache.Store
		publisher publish.Publisher = publish.Nop{}
	)
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("planner"))
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer nc.Drain()

		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("create jetstream context: %w", err)
		}
		kv, err := cache.NewNATS(ctx, js, cfg.NATSBucket, cfg.TaskTTL)
		if err != nil {
			return err
		}
		records = kv
		publisher = publish.NewNATS(nc)
		log.Infof("Task records in NATS bucket %s", cfg.NATSBucket)
	} else {
		mem := cache.NewMemory()
		go mem.Janitor(ctx, janitorInterval)
		records = mem
		log.Info("Task records in memory")
	}

	runner := tasks.NewRunner(tasks.NewStore(records, cfg.TaskTTL),
		tasks.WithPublisher(publisher),
		tasks.WithObserver(m),
	)
	srv := &api.Server{
		Planner: p,
		Tasks:   runner,
		Plans:   cache.NewTyped[planner.TravelPlan](records, "plan", cfg.TaskTTL),
		Metrics: m,
	}

	if cfg.DatabaseURL != "" {
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := store.NewPlanRepository(pool)
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return err
			}
		}
		srv.Archive = repo
		log.Info("Persisting plans to PostgreSQL")
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(srv, metrics.Handler(reg)),
		ReadTimeout:  time.Minute,
		WriteTimeout: 0, // Disabled for streaming
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting on %s (model: %s, backend: %s)", cfg.ListenAddr, cfg.Model, backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	if err := srv.Tasks.Wait(shutdownCtx); err != nil {
		log.Warnf("Background tasks still running at exit: %v", err)
	}
	return nil
}
