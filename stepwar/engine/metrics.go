package engine

import (
	"math"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

// Calculator derives calories, distance and experience from validated step
// deltas. Stateless and deterministic; all tuning lives in Config.
type Calculator struct {
	config *Config
}

func NewCalculator(config *Config) *Calculator {
	return &Calculator{config: config}
}

func (c *Calculator) Derive(steps int64) models.DerivedMetrics {
	return models.DerivedMetrics{
		Calories:   int64(math.Floor(float64(steps) * c.config.CaloriesPerStep)),
		DistanceKm: round2(float64(steps) * c.config.KmPerStep),
		XP:         int64(math.Floor(float64(steps) * c.config.XPPerStep)),
	}
}

// Level maps total experience to a level: floor(xp / multiplier) + 1.
func (c *Calculator) Level(xp int64) int {
	if xp < 0 {
		return 1
	}
	return int(xp/c.config.LevelXPMultiplier) + 1
}

// LevelProgress returns how far through the current level band the user is,
// as a percentage clamped to [0,100].
func (c *Calculator) LevelProgress(xp int64) float64 {
	if xp < 0 {
		return 0
	}
	within := xp % c.config.LevelXPMultiplier
	pct := float64(within) / float64(c.config.LevelXPMultiplier) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
