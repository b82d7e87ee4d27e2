// Merlin - Loan underwriting that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/merlin/internal/api"
	"github.com/opensource-finance/merlin/internal/bus"
	"github.com/opensource-finance/merlin/internal/cache"
	"github.com/opensource-finance/merlin/internal/domain"
	"github.com/opensource-finance/merlin/internal/overlay"
	"github.com/opensource-finance/merlin/internal/pipeline"
	"github.com/opensource-finance/merlin/internal/repository"
	"github.com/opensource-finance/merlin/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load .env if present (development convenience)
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("MERLIN_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting merlin",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("MERLIN_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Overlay Engine
	overlayEngine, err := overlay.NewEngine()
	if err != nil {
		slog.Error("failed to initialize overlay engine", "error", err)
		os.Exit(1)
	}
	defer overlayEngine.Close()

	// Load overlay rules from database (no hardcoded defaults - configure via API)
	if err := loadOverlayRulesFromDatabase(ctx, repo, overlayEngine); err != nil {
		slog.Error("failed to load overlay rules", "error", err)
		os.Exit(1)
	}
	slog.Info("overlay engine initialized", "rules_count", overlayEngine.RulesCount())

	// Initialize Underwriting Pipeline
	engine, err := pipeline.NewEngine(cfg.Policy, pipeline.WithOverlay(overlayEngine))
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	slog.Info("underwriting pipeline initialized", "engine_version", pipeline.Version)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("MERLIN_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, engine)

		tenantIDs := []string{}
		if envTenants := os.Getenv("MERLIN_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, overlayEngine, cfg.Policy, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("merlin is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("merlin shutdown complete")
}

// loadOverlayRulesFromDatabase loads overlay rules into the engine for
// the tenants named in MERLIN_TENANTS. Rules are tenant-scoped and can
// always be added later via POST /overlay-rules.
func loadOverlayRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *overlay.Engine) error {
	envTenants := os.Getenv("MERLIN_TENANTS")
	if envTenants == "" {
		slog.Info("no tenants configured - overlay rules load via POST /overlay-rules/reload")
		return nil
	}

	var all []*domain.OverlayRule
	for _, tenantID := range strings.Split(envTenants, ",") {
		rules, err := repo.ListOverlayRules(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list overlay rules", "tenant_id", tenantID, "error", err)
			continue
		}
		all = append(all, rules...)
	}

	if len(all) > 0 {
		slog.Info("loading overlay rules from database", "count", len(all))
		return engine.LoadRules(all)
	}

	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                  MERLIN")
	fmt.Println("         Loan Underwriting Engine")
	fmt.Println("      Every decision, fully explained.")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /underwrite             - Underwrite a loan application")
	fmt.Println("    GET  /evaluations/{id}       - Get evaluation by ID")
	fmt.Println("    GET  /evaluations            - List evaluations by borrower")
	fmt.Println("    GET  /applications/{id}      - Get application by ID")
	fmt.Println("    GET  /policy                 - Get policy thresholds")
	fmt.Println("    PUT  /policy                 - Update policy thresholds")
	fmt.Println("    GET  /overlay-rules          - List overlay rules")
	fmt.Println("    POST /overlay-rules          - Create an overlay rule")
	fmt.Println("    DELETE /overlay-rules/{id}   - Delete an overlay rule")
	fmt.Println("    POST /overlay-rules/reload   - Hot-reload overlay rules")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
