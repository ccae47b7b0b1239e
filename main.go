package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stepwar/stepwar/stepwar"
	"github.com/stepwar/stepwar/stepwar/database"
	"github.com/stepwar/stepwar/stepwar/engine"
	"github.com/stepwar/stepwar/stepwar/logger"
	"github.com/stepwar/stepwar/stepwar/query"
	"github.com/stepwar/stepwar/stepwar/storage"
	syncpkg "github.com/stepwar/stepwar/stepwar/sync"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Initialize custom logger
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting StepWar progression engine",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	skipRemote := flag.Bool("no-remote", false, "run without a remote backend (memory store)")
	flag.Parse()

	cfg, err := stepwar.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	if *skipRemote {
		cfg.Sync.Driver = "memory"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	app := stepwar.New(*cfg, version, commit)

	if cfg.Sync.Driver == "postgres" {
		slog.Info("Initializing database connection...")
		dbStartTime := time.Now()

		dbConfig := database.DBConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			Database: cfg.DB.Database,
			PoolSize: cfg.DB.PoolSize,
		}

		db, err := database.New(ctx, dbConfig)
		if err != nil {
			slog.Error("Database connection failed",
				slog.String("error", err.Error()),
				slog.Duration("attempted_for", time.Since(dbStartTime)))
			os.Exit(-1)
		}
		defer db.Close()

		slog.Info("Database connected successfully",
			slog.String("database", cfg.DB.Database),
			slog.Duration("took", time.Since(dbStartTime)))

		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Failed to initialize database schema",
				slog.String("error", err.Error()))
			os.Exit(-1)
		}
		slog.Info("Database schema initialized successfully")

		app.DB = db
	}

	store, err := app.OpenRemote(ctx)
	if err != nil {
		slog.Error("Failed to open remote store",
			slog.String("driver", cfg.Sync.Driver),
			slog.Any("error", err))
		os.Exit(-1)
	}
	app.Remote = store
	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer closeCancel()
			if err := closer.Close(closeCtx); err != nil {
				slog.Error("Failed to close remote store", slog.Any("error", err))
			}
		}()
	}
	slog.Info("Remote store ready", slog.String("driver", cfg.Sync.Driver))

	app.KV = storage.NewMemoryKV()
	app.Engine = engine.New(app.EngineConfig(), app.KV)
	app.Query = query.NewService(app.KV, app.Engine.Ledger(), app.Engine.Calculator(), cfg.Engine.DailyStepGoal)

	remoteTimeout := time.Duration(cfg.Sync.RemoteTimeoutSeconds) * time.Second
	app.Reconciler = syncpkg.NewReconciler(app.Engine, app.Engine.Ledger().Entries(), app.Remote, remoteTimeout)

	interval := time.Duration(cfg.Sync.IntervalSeconds) * time.Second
	runner, err := syncpkg.NewRunner(app.Reconciler, app.Engine.Projector(), interval)
	if err != nil {
		slog.Error("Failed to create sync runner", slog.Any("error", err))
		os.Exit(-1)
	}
	app.Runner = runner

	if err := app.Runner.Start(); err != nil {
		slog.Error("Failed to start sync runner", slog.Any("error", err))
		os.Exit(-1)
	}
	defer func() {
		if err := app.Runner.Stop(); err != nil {
			slog.Error("Failed to stop sync runner", slog.Any("error", err))
		}
	}()

	logger.LogSystem("Engine is running. Press CTRL-C to exit.",
		slog.Duration("sync_interval", interval))
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	logger.LogSystem("Shutting down...")
}
