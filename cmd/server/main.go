package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantao-pipeline/internal/api/routes"
	"plantao-pipeline/internal/background"
	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/decision"
	"plantao-pipeline/internal/dedup"
	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/internal/enrich"
	"plantao-pipeline/internal/extraction"
	"plantao-pipeline/internal/generator"
	"plantao-pipeline/internal/heuristic"
	"plantao-pipeline/internal/llm"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/metrics"
	"plantao-pipeline/internal/normalizer"
	"plantao-pipeline/internal/pipeline"
	"plantao-pipeline/internal/store/postgres"
	"plantao-pipeline/pkg/utils"

	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	adapterConfigs := make([]logging.AdapterConfig, 0, len(cfg.Logging.Adapters))
	for _, a := range cfg.Logging.Adapters {
		adapterConfigs = append(adapterConfigs, logging.AdapterConfig{
			Name:    a.Name,
			Type:    a.Type,
			Enabled: a.Enabled,
			Options: a.Options,
		})
	}
	if err := logging.InitializeLogging(cfg.Logging.Level, adapterConfigs); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting Plantao Pipeline server")

	// Keyword dictionary
	dict, err := dictionary.LoadOrDefault(cfg.Dictionary.Path)
	if err != nil {
		logger.Error("Failed to load dictionary", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	// Redis
	redisClient := utils.NewRedisClient(cfg)
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable at startup - cache and cycle lock degraded", map[string]interface{}{
				"error": err.Error(),
			})
		}
		cancel()
	}

	// Postgres
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	st, err := postgres.New(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error("Failed to connect to database", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer st.Close()

	// LLM manager
	llmManager := llm.NewManager(cfg)
	if err := llmManager.Start(); err != nil {
		logger.Error("Failed to start LLM manager", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	// Extraction capability
	extractor, err := extraction.NewExtractor(cfg, dict, llmManager, redisClient)
	if err != nil {
		logger.Error("Failed to build extractor", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	// Enrichment chain for hospital resolution
	var clients []enrich.Client
	if cfg.Normalizer.EnrichmentEnabled {
		if dc := enrich.NewDirectoryClient(cfg.Normalizer.DirectoryBaseURL, cfg.Normalizer.EnrichmentTimeout, cfg.Normalizer.EnrichmentRateLmt); dc != nil {
			clients = append(clients, dc)
		}
		if pc := enrich.NewPlacesClient(cfg.Normalizer.PlacesBaseURL, cfg.Normalizer.PlacesAPIKey, cfg.Normalizer.EnrichmentTimeout, cfg.Normalizer.EnrichmentRateLmt); pc != nil {
			clients = append(clients, pc)
		}
	}

	// Stage processors
	stages := pipeline.NewStages(
		heuristic.NewFilter(dict, heuristic.Options{
			MinLength: cfg.Heuristic.MinLength,
			MaxLength: cfg.Heuristic.MaxLength,
			Threshold: cfg.Heuristic.Threshold,
		}),
		extractor,
		generator.New(cfg),
		normalizer.New(cfg, dict, st.Entities(), clients...),
		dedup.New(cfg, st.Postings()),
		decision.New(cfg),
		st.Entities(),
	)

	// Metrics sinks
	sinks := []metrics.Sink{metrics.NewLogSink()}
	if cfg.Metrics.Sink == "http" {
		if hs := metrics.NewHTTPSink(cfg.Metrics.Endpoint, cfg.Metrics.Timeout); hs != nil {
			sinks = append(sinks, hs)
		}
	}

	orchestrator := pipeline.NewOrchestrator(cfg, st, stages, llmManager, redisClient, metrics.NewMultiSink(sinks...))

	// Run cycles alongside the API
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go func() {
		if err := orchestrator.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("Pipeline loop stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Maintenance tasks
	maintenance := background.NewManager()
	if err := maintenance.Register(background.Task{
		Name:     "purge_terminal",
		Interval: cfg.Worker.PurgeInterval,
		Run:      orchestrator.PurgeTerminal,
	}); err != nil {
		logger.Error("Failed to register maintenance task", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	if err := maintenance.Start(runCtx); err != nil {
		logger.Error("Failed to start maintenance manager", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Setup routes
	routes.SetupRoutes(e, cfg, st, redisClient, llmManager, orchestrator)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		runCancel()

		if err := maintenance.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping maintenance manager", map[string]interface{}{"error": err.Error()})
		}

		if err := llmManager.Stop(); err != nil {
			logger.Error("Error stopping LLM manager", map[string]interface{}{"error": err.Error()})
		}

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", map[string]interface{}{"address": address})

	if err := e.Start(address); err != nil {
		logger.Error("Server stopped", map[string]interface{}{"error": err.Error()})
	}
}
