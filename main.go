package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)

	"github.com/DalavanCloud/ontologies-api/pkg/config"
	"github.com/DalavanCloud/ontologies-api/pkg/database"
	"github.com/DalavanCloud/ontologies-api/pkg/handlers"
	"github.com/DalavanCloud/ontologies-api/pkg/logging"
	"github.com/DalavanCloud/ontologies-api/pkg/middleware"
	"github.com/DalavanCloud/ontologies-api/pkg/repositories"
	"github.com/DalavanCloud/ontologies-api/pkg/retry"
	"github.com/DalavanCloud/ontologies-api/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load .env file if present (local development)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", cfg.Database.Database),
		zap.Bool("slices_enabled", cfg.Slices.Enabled),
		zap.Bool("stats_cache", cfg.Redis.Host != ""))

	ctx := context.Background()

	// Migrations run over database/sql; the service itself uses pgx pools.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			ConnString:     cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	cache, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Repositories
	ontologyRepo := repositories.NewOntologyRepository(db)
	classRepo := repositories.NewClassRepository(db)
	userRepo := repositories.NewUserRepository(db)
	mappingRepo := repositories.NewMappingRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	sliceRepo := repositories.NewSliceRepository(db)

	// Services
	resolver := services.NewTermResolver(ontologyRepo, classRepo, logger)
	registry := services.NewMappingProcessRegistry()
	mappingService := services.NewMappingService(mappingRepo, userRepo, resolver, registry, logger)
	queryService := services.NewMappingQueryService(
		mappingRepo, ontologyRepo, resolver, cache,
		time.Duration(cfg.Mappings.StatsCacheTTLSeconds)*time.Second,
		cfg.Mappings.RecentFetchSlack, logger)
	sliceService := services.NewSliceService(sliceRepo, groupRepo, logger)
	ontologyService := services.NewOntologyService(ontologyRepo, sliceService, logger)

	if cfg.Slices.Enabled {
		if err := sliceService.SynchronizeGroupsToSlices(ctx); err != nil {
			logger.Error("Failed to synchronize slices at startup", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewMappingsHandler(mappingService, queryService, cfg, logger).RegisterRoutes(mux)
	handlers.NewOntologiesHandler(ontologyService, logger).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.WithSlice(sliceService, cfg.Slices.Enabled, logger)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = cors.AllowAll().Handler(handler)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting ontologies-api",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
