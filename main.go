package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/config"
	"github.com/tremor-labs/tremor-engine/pkg/database"
	"github.com/tremor-labs/tremor-engine/pkg/dispatch"
	"github.com/tremor-labs/tremor-engine/pkg/metrics"
	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/repositories"
	"github.com/tremor-labs/tremor-engine/pkg/services"
	"github.com/tremor-labs/tremor-engine/pkg/sources"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // sync on exit is best-effort

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Int64("master_seed", cfg.Hazard.MasterSeed),
		zap.String("source_model", cfg.Hazard.SourceModelPath),
		zap.Int("concurrent_tasks", cfg.Hazard.ConcurrentTasks),
		zap.String("database", cfg.Database.Host))

	ctx := context.Background()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Calculation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Migrations run over database/sql; the engine itself uses pgx pools.
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	if err := database.Migrate(sqlDB, logger); err != nil {
		sqlDB.Close()
		return err
	}
	sqlDB.Close()

	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	model, err := sources.LoadModel(cfg.Hazard.SourceModelPath, cfg.Hazard.InvestigationTime)
	if err != nil {
		return err
	}
	logger.Info("Source model loaded",
		zap.Int("sources", len(model.Sources)),
		zap.Int("sites", len(model.Sites)))

	registry := prometheus.NewRegistry()
	sim := metrics.NewSimulation(registry)
	go serveMetrics(registry, logger)

	siteRepo := repositories.NewHazardSiteRepository(db)
	if err := siteRepo.SaveSites(ctx, model.Sites); err != nil {
		return err
	}

	pool := dispatch.NewPool(cfg.Hazard.ConcurrentTasks, logger)
	calculator := services.NewEventBasedCalculator(
		cfg.Hazard,
		model.Sources,
		model.Sites,
		sources.NewAttenuationModel(0),
		repositories.NewSESRuptureRepository(db),
		repositories.NewGMFRepository(db),
		pool,
		logger,
		sim,
	)

	rlz := &models.Realization{ID: uuid.New(), Path: "b1", Weight: 1.0, Ordinal: 0}
	result, err := calculator.Run(ctx, []services.RealizationInput{
		{Realization: rlz, GSIMs: model.GSIMs},
	})
	if err != nil {
		return err
	}

	for _, coll := range result.SESCollections {
		logger.Info("Hazard results persisted",
			zap.String("ses_collection", coll.ID.String()),
			zap.Int("distinct_ruptures", result.Ruptures[coll.ID].Len()),
			zap.Int("nonzero_gmf_pairs", len(result.GMFs[coll.ID])))
	}
	return nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if err := http.ListenAndServe(":9090", mux); err != nil {
		logger.Warn("Metrics server stopped", zap.Error(err))
	}
}
