package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/auth"
	"github.com/ekaya-inc/ekaya-docs/pkg/cache"
	"github.com/ekaya-inc/ekaya-docs/pkg/config"
	"github.com/ekaya-inc/ekaya-docs/pkg/database"
	"github.com/ekaya-inc/ekaya-docs/pkg/handlers"
	"github.com/ekaya-inc/ekaya-docs/pkg/logging"
	"github.com/ekaya-inc/ekaya-docs/pkg/middleware"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/repositories"
	"github.com/ekaya-inc/ekaya-docs/pkg/retry"
	"github.com/ekaya-inc/ekaya-docs/pkg/services"
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
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("links_stale_after_days", cfg.Links.StaleAfterDays))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The database may still be starting when the service comes up.
	db, err := retry.DoWithResult(ctx, retry.StartupConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:               cfg.Database.URL(),
			MaxConnections:    cfg.Database.MaxConnections,
			MinConnections:    cfg.Database.MinConnections,
			MaxConnLifetime:   cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", logging.Error(err))
	}

	var usage cache.UsageCache = cache.NoopUsageCache{}
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		// The cache only speeds up usage stats, so run without it.
		logger.Warn("Redis unavailable, usage stats will not be cached", logging.Error(err))
	} else if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		usage = cache.NewUsageCache(redisClient, cfg.Links.UsageCacheTTL, logger)
	}

	// Repositories
	hierarchyRepo := repositories.NewHierarchyRepository()
	actionRepo := repositories.NewActionRepository()
	sequenceRepo := repositories.NewSequenceRepository()
	roleRepo := repositories.NewRoleRepository()
	taskRepo := repositories.NewTaskRepository()
	navRepo := repositories.NewNavigationRepository()
	linkRepo := repositories.NewLinkRepository()

	// Services
	withTx := services.NewTxFunc()
	hierarchyService := services.NewHierarchyService(hierarchyRepo, actionRepo, usage, logger)
	actionService := services.NewActionService(actionRepo, hierarchyRepo, navRepo, sequenceRepo, usage, logger)
	sequenceService := services.NewSequenceService(sequenceRepo, hierarchyRepo, actionRepo, logger)
	navigationService := services.NewNavigationService(roleRepo, taskRepo, actionRepo, navRepo, usage, withTx, logger)
	linkService := services.NewLinkService(linkRepo, usage, withTx, logger,
		services.WithStaleAfter(cfg.Links.StaleAfter()))

	if cfg.Seed.File != "" {
		seedService := services.NewSeedService(hierarchyService, actionService, sequenceService,
			navigationService, linkService, withTx, logger)
		if err := importSeed(ctx, db, seedService, cfg.Seed, logger); err != nil {
			logger.Fatal("Failed to import seed file", zap.String("file", cfg.Seed.File), logging.Error(err))
		}
	}

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		logger.Fatal("Failed to initialize JWKS client", logging.Error(err))
	}
	defer jwksClient.Close()
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(jwksClient, logger), logger)
	scopeMiddleware := handlers.ScopeMiddleware(database.WithRequestScope(db, logger))

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewHierarchyHandler(hierarchyService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewActionHandler(actionService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewSequenceHandler(sequenceService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewNavigationHandler(navigationService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewLinkHandler(linkService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", logging.Error(err))
		}
	}()

	logger.Info("Starting ekaya-docs",
		zap.String("addr", server.Addr),
		zap.String("version", cfg.Version),
		zap.Bool("tls", cfg.TLSCertPath != ""))

	if cfg.TLSCertPath != "" {
		err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", logging.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations applies the embedded schema over a database/sql handle with
// a statement timeout so a missing privilege fails fast instead of hanging.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.MigrationURL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return database.RunMigrations(sqlDB, logger)
}

// importSeed loads the startup YAML document inside one database scope.
func importSeed(ctx context.Context, db *database.DB, seed services.SeedService, cfg config.SeedConfig, logger *zap.Logger) error {
	f, err := os.Open(cfg.File)
	if err != nil {
		return err
	}
	defer f.Close()

	scopedCtx, cleanup, err := database.NewScopeProvider(db).WithScope(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	scopedCtx = models.WithActor(scopedCtx, models.Actor{Subject: cfg.Owner, Source: models.ActorSourceSeed})
	result, err := seed.Import(scopedCtx, f, cfg.Owner)
	if err != nil {
		return err
	}
	logger.Info("Seed file imported",
		zap.String("file", cfg.File),
		zap.Int("systems", result.Systems),
		zap.Int("actions", result.Actions),
		zap.Int("roles", result.Roles),
		zap.Int("tasks", result.Tasks),
		zap.Int("links", result.Links))
	return nil
}
