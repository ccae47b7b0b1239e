package engine

import "time"

// Config holds the tunable progression constants. Defaults mirror the
// production mobile client.
type Config struct {
	// Spike rejection: at most SpikeThresholdSteps per SpikeWindow of
	// elapsed time between two samples.
	SpikeThresholdSteps int64
	SpikeWindow         time.Duration

	CaloriesPerStep   float64
	KmPerStep         float64
	XPPerStep         float64
	LevelXPMultiplier int64
}

func NewDefaultConfig() *Config {
	return &Config{
		SpikeThresholdSteps: 100,
		SpikeWindow:         5 * time.Second,
		CaloriesPerStep:     0.04,
		KmPerStep:           0.0008,
		XPPerStep:           0.1,
		LevelXPMultiplier:   1000,
	}
}
