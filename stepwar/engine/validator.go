package engine

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/stepwar/stepwar/stepwar/database/models"
)

// Validator turns raw cumulative samples into validated step deltas and
// rejects physically implausible spikes. Pure over its inputs and config.
type Validator struct {
	config *Config
}

func NewValidator(config *Config) *Validator {
	return &Validator{config: config}
}

// Validate diffs a new cumulative reading against the previous one.
// elapsed <= 0 marks the first sample of a tracking session: no baseline
// exists, so the cadence cap does not apply. Callers with a baseline must
// reject non-advancing timestamps before getting here; only a true session
// start may pass elapsed <= 0.
func (v *Validator) Validate(userID string, prevCumulative, newCumulative int64, elapsed time.Duration, observedAt time.Time) (models.StepDelta, error) {
	if newCumulative < 0 {
		return models.StepDelta{}, fmt.Errorf("%w: cumulative count %d below zero", ErrNegativeDelta, newCumulative)
	}

	rawDelta := newCumulative - prevCumulative
	if rawDelta < 0 {
		return models.StepDelta{}, fmt.Errorf("%w: %d -> %d", ErrNegativeDelta, prevCumulative, newCumulative)
	}

	if elapsed > 0 {
		if maxDelta := v.maxPlausibleDelta(elapsed); rawDelta > maxDelta {
			return models.StepDelta{}, fmt.Errorf("%w: %d steps in %s (cap %d)",
				ErrImplausibleSpike, rawDelta, elapsed, maxDelta)
		}
	}

	return models.StepDelta{
		UserID:         userID,
		ObservedAt:     observedAt.UTC(),
		Amount:         rawDelta,
		SourceSampleID: SampleID(userID, newCumulative, observedAt),
	}, nil
}

func (v *Validator) maxPlausibleDelta(elapsed time.Duration) int64 {
	window := v.config.SpikeWindow
	if window <= 0 {
		window = 5 * time.Second
	}
	return int64(float64(v.config.SpikeThresholdSteps) * (elapsed.Seconds() / window.Seconds()))
}

// SampleID derives the deterministic identity of a raw sample. The same
// sample always hashes to the same id, which is what makes replay idempotent.
func SampleID(userID string, cumulative int64, observedAt time.Time) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d", userID, cumulative, observedAt.UTC().UnixNano())
	return fmt.Sprintf("%016x", h.Sum64())
}
