// Package main provides the leadloop HTTP server and scheduler.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leadloop/leadloop-go/internal/api"
	"github.com/leadloop/leadloop-go/internal/config"
	"github.com/leadloop/leadloop-go/internal/db"
	"github.com/leadloop/leadloop-go/internal/llm"
	"github.com/leadloop/leadloop-go/internal/metrics"
	"github.com/leadloop/leadloop-go/internal/notify"
	"github.com/leadloop/leadloop-go/internal/scheduler"
	"github.com/leadloop/leadloop-go/internal/search"
	"github.com/leadloop/leadloop-go/internal/sourcing"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("leadloop-server starting",
		"version", version,
		"port", cfg.ServerPort,
		"scheduler", cfg.RunScheduler,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()

	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, collector)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}()

	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("LEADLOOP_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		logger.Warn("database wiped")
	}

	model, err := llm.NewModel(cfg, collector)
	if err != nil {
		logger.Error("failed to create LLM model", "error", err)
		os.Exit(1)
	}
	judge := llm.NewJudge(model, logger)
	searcher := search.New(cfg.SearchAPIBase, logger, collector)
	loop := sourcing.NewLoop(dbClient, searcher, judge, cfg.SearchAPIKey, logger)

	var emailSender *notify.EmailSender
	if cfg.EmailAPIBase != "" && cfg.EmailAPIKey != "" {
		emailSender = notify.NewEmailSender(cfg.EmailAPIBase, cfg.EmailAPIKey, cfg.EmailFrom)
	}
	dispatcher := notify.NewDispatcher(dbClient, notify.NewSlackSender(), emailSender,
		cfg.ActionURLBase, cfg.ActionURLSecret, cfg.SlackWebhookURL, collector, logger)

	if cfg.RunScheduler {
		sched := scheduler.New(dbClient, loop, dispatcher, cfg.TickInterval, cfg.AdvisoryLocks, logger)
		go sched.Run(ctx)
	}

	handler := api.New(dbClient, api.StaticTokens(cfg.APITokens), collector, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
