package engine

import "errors"

// Validation rejections. These are terminal for the submitted sample: the
// caller must start a new tracking session rather than retry.
var (
	// ErrNegativeDelta means the cumulative counter regressed, which
	// indicates a device counter reset.
	ErrNegativeDelta = errors.New("cumulative step count regressed")

	// ErrImplausibleSpike means the delta exceeds the sustained human
	// cadence cap and is treated as a spoofed bulk write.
	ErrImplausibleSpike = errors.New("step delta exceeds plausible cadence")

	// ErrUnknownUser means no profile exists for the submitted user id;
	// samples never create accounts implicitly.
	ErrUnknownUser = errors.New("unknown user")
)

// ErrInvariantViolation marks state that cannot legally exist (for example a
// league entry with negative steps). Processing halts for that entity only.
var ErrInvariantViolation = errors.New("invariant violation")
