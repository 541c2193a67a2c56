package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giygas/openfda-api/config"
	"github.com/giygas/openfda-api/data"
	"github.com/giygas/openfda-api/handlers"
	"github.com/giygas/openfda-api/health"
	"github.com/giygas/openfda-api/logging"
	"github.com/giygas/openfda-api/mapper"
	"github.com/giygas/openfda-api/migrations"
	"github.com/giygas/openfda-api/query"
	"github.com/giygas/openfda-api/registry"
	"github.com/giygas/openfda-api/scheduler"
	"github.com/giygas/openfda-api/server"
	"github.com/giygas/openfda-api/store"
	"github.com/giygas/openfda-api/validation"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(logging.OptionsFromConfig(cfg, "logs")); err != nil {
		logging.Warn("File logging disabled", "error", err)
	}

	if err := run(cfg); err != nil {
		logging.Error("Server stopped with error", "error", err)
		logging.Close()
		os.Exit(1)
	}
	logging.Close()
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := migrations.Migrate(ctx, db.DB, cfg.DatabaseDriver)
	if err != nil {
		return err
	}
	logging.Info("Database ready", "driver", cfg.DatabaseDriver, "schema_version", version)

	reg := registry.Default()
	schema := store.DefaultSchema()
	if err := schema.Validate(reg); err != nil {
		return err
	}

	executor, err := store.NewExecutor(db, schema)
	if err != nil {
		return err
	}

	compiler := query.NewCompiler(reg, query.Options{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		Strict:          cfg.StrictQueryFields,
	})

	refresh := time.Duration(cfg.StatsRefreshMinutes) * time.Minute
	stats := data.NewStatsContainer()
	sched := scheduler.NewScheduler(executor, stats, refresh)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	handler := handlers.NewHTTPHandler(
		compiler,
		executor,
		mapper.New(reg),
		validation.NewParamValidator(),
		health.NewHealthChecker(executor, stats, sched, refresh),
	)
	srv := server.NewServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
