package stepwar

import (
	"context"
	"fmt"
	"time"

	"github.com/stepwar/stepwar/stepwar/database"
	"github.com/stepwar/stepwar/stepwar/engine"
	"github.com/stepwar/stepwar/stepwar/query"
	"github.com/stepwar/stepwar/stepwar/remote"
	"github.com/stepwar/stepwar/stepwar/storage"
	syncpkg "github.com/stepwar/stepwar/stepwar/sync"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

// App wires the engine, stores and sync machinery together for main.
type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB         *database.DB
	KV         storage.KV
	Engine     *engine.Engine
	Query      *query.Service
	Remote     remote.DocumentStore
	Reconciler *syncpkg.Reconciler
	Runner     *syncpkg.Runner
}

// EngineConfig translates the file config into engine constants.
func (a *App) EngineConfig() *engine.Config {
	cfg := engine.NewDefaultConfig()
	e := a.Cfg.Engine
	if e.StepSpikeThreshold > 0 {
		cfg.SpikeThresholdSteps = e.StepSpikeThreshold
	}
	if e.StepSpikeWindowSecs > 0 {
		cfg.SpikeWindow = time.Duration(e.StepSpikeWindowSecs) * time.Second
	}
	if e.CaloriesPerStep > 0 {
		cfg.CaloriesPerStep = e.CaloriesPerStep
	}
	if e.KmPerStep > 0 {
		cfg.KmPerStep = e.KmPerStep
	}
	if e.XPPerStep > 0 {
		cfg.XPPerStep = e.XPPerStep
	}
	if e.LevelXPMultiplier > 0 {
		cfg.LevelXPMultiplier = e.LevelXPMultiplier
	}
	return cfg
}

// OpenRemote builds the configured remote document store.
func (a *App) OpenRemote(ctx context.Context) (remote.DocumentStore, error) {
	switch a.Cfg.Sync.Driver {
	case "postgres":
		if a.DB == nil {
			return nil, fmt.Errorf("postgres remote requires a database connection")
		}
		return remote.NewBunStore(a.DB.BunDB()), nil
	case "mongodb":
		return remote.NewMongoStore(ctx, a.Cfg.Mongo.URI, a.Cfg.Mongo.Database)
	case "memory", "":
		return remote.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown sync driver %q", a.Cfg.Sync.Driver)
	}
}
