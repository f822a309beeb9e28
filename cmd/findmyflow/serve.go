package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/spf13/cobra"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/ai"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/api"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/cache"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/catalog"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/config"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/email"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/store"
	stripeinternal "github.com/Nic-Huzz/findmyflow-sub001/internal/stripe"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/worker"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the result worker",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (text, json)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger(viperForCmd(cmd))

	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Catalog ───────────────────────────────────────────────────────────────
	registry, err := loadRegistry(cfg.CatalogDir)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "flows", len(registry.Flows()), "dir", cfg.CatalogDir)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.New(pool, queries)

	// ── Redis (in-progress flow sessions) ─────────────────────────────────────
	redisClient, err := cache.Open(cmd.Context(), cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	flows := cache.NewFlowStateCache(redisClient, cfg.SessionTTL)
	logger.Info("redis connected", "session_ttl", cfg.SessionTTL)

	// ── Stripe ────────────────────────────────────────────────────────────────
	stripeClient := stripeinternal.NewClient(cfg.StripeSecretKey)

	// ── Narrative ─────────────────────────────────────────────────────────────
	narrator := newNarrator(cfg, logger)

	// ── Email (Resend) ────────────────────────────────────────────────────────
	mailer := email.NewResendClient(
		cfg.ResendAPIKey,
		cfg.EmailFromAddr,
		cfg.EmailFromName,
		cfg.BaseURL,
	)

	// ── Worker ────────────────────────────────────────────────────────────────
	job := worker.NewJob(queries, st, registry, narrator, mailer, logger)
	runner := worker.NewRunner(job, st, queries, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(api.Deps{
		Querier:  queries,
		Store:    st,
		Flows:    flows,
		Registry: registry,
		Stripe:   stripeClient,
		Worker:   runner,
		Mailer:   mailer,
	}, api.Config{
		StripeWebhookSecret: cfg.StripeWebhookSecret,
		Env:                 cfg.Env,
		AllowedOrigin:       cfg.AllowedOrigin,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerDone := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(workerDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		<-workerDone
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// In-flight jobs finish or hit their deadline before the pool closes.
	<-workerDone
	logger.Info("shutdown complete")
	return nil
}

// newNarrator picks the narrative providers. DeepSeek is primary when both
// keys are set, Anthropic the fallback. Nil means results are finalised
// without a narrative.
func newNarrator(cfg *config.Config, logger *slog.Logger) ai.Narrator {
	if !cfg.NarrativeConfigured() {
		logger.Info("ai: narrative disabled")
		return nil
	}
	switch {
	case cfg.DeepSeekAPIKey != "" && cfg.AnthropicAPIKey != "":
		logger.Info("ai: using DeepSeek with Anthropic fallback")
		return ai.NewFallbackNarrator(
			ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel),
			ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel),
			logger,
		)
	case cfg.DeepSeekAPIKey != "":
		logger.Info("ai: using DeepSeek only")
		return ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
	default:
		logger.Info("ai: using Anthropic only")
		return ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
}

// loadRegistry reads the catalog from dir, or the embedded copy when dir is
// empty.
func loadRegistry(dir string) (*catalog.Registry, error) {
	if dir == "" {
		reg, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		return reg, nil
	}
	reg, err := catalog.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", dir, err)
	}
	return reg, nil
}

// openDB opens the connection pool and verifies Postgres is reachable before
// anything else starts.
func openDB(ctx context.Context, dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	return pool, db.New(pool), nil
}
