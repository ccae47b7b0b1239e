package stepwar

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the production defaults; a config file only needs to
// override what it changes.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			StepSpikeThreshold:  100,
			StepSpikeWindowSecs: 5,
			CaloriesPerStep:     0.04,
			KmPerStep:           0.0008,
			XPPerStep:           0.1,
			LevelXPMultiplier:   1000,
			DailyStepGoal:       10000,
		},
		Sync: SyncConfig{
			IntervalSeconds:      300,
			RemoteTimeoutSeconds: 10,
			Driver:               "postgres",
		},
	}
}

type Config struct {
	Log    LogConfig    `toml:"log"`
	Engine EngineConfig `toml:"engine"`
	Sync   SyncConfig   `toml:"sync"`
	DB     DBConfig     `toml:"db"`
	Mongo  MongoConfig  `toml:"mongo"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type EngineConfig struct {
	StepSpikeThreshold  int64   `toml:"step_spike_threshold"`
	StepSpikeWindowSecs int     `toml:"step_spike_window_seconds"`
	CaloriesPerStep     float64 `toml:"calories_per_step"`
	KmPerStep           float64 `toml:"km_per_step"`
	XPPerStep           float64 `toml:"xp_per_step"`
	LevelXPMultiplier   int64   `toml:"level_xp_multiplier"`
	DailyStepGoal       int64   `toml:"daily_step_goal"`
}

type SyncConfig struct {
	IntervalSeconds      int    `toml:"interval_seconds"`
	RemoteTimeoutSeconds int    `toml:"remote_timeout_seconds"`
	// Driver selects the remote document store: postgres, mongodb or
	// memory (no configured backend).
	Driver string `toml:"driver"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}
