// Package main provides the entry point for the leadloop MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadloop/leadloop-go/internal/config"
	"github.com/leadloop/leadloop-go/internal/db"
	"github.com/leadloop/leadloop-go/internal/llm"
	"github.com/leadloop/leadloop-go/internal/metrics"
	"github.com/leadloop/leadloop-go/internal/search"
	"github.com/leadloop/leadloop-go/internal/server"
	"github.com/leadloop/leadloop-go/internal/sourcing"
	"github.com/leadloop/leadloop-go/internal/tools"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	// The stdio transport serves exactly one caller; their identity scopes
	// every query the tools run.
	userID := os.Getenv("LEADLOOP_USER_ID")
	if userID == "" {
		userID = "local"
	}

	logger.Info("leadloop-mcp starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm_provider", cfg.LLMProvider,
		"user_id", userID,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()

	// Connect to database
	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger, collector)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(ctx)
	}()

	// Initialize database schema
	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	// Create the LLM-backed judge and the sourcing loop
	model, err := llm.NewModel(cfg, collector)
	if err != nil {
		logger.Error("failed to create LLM model", "error", err)
		os.Exit(1)
	}
	judge := llm.NewJudge(model, logger)
	searcher := search.New(cfg.SearchAPIBase, logger, collector)
	loop := sourcing.NewLoop(dbClient, searcher, judge, cfg.SearchAPIKey, logger)

	// Create and setup server
	srv := server.New(version, logger)
	srv.Setup()

	// Register tools
	deps := &tools.Dependencies{
		DB:     dbClient,
		Loop:   loop,
		UserID: userID,
		Logger: logger,
	}
	tools.RegisterAll(srv.MCPServer(), deps)
	logger.Info("tools registered", "count", 3)

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
