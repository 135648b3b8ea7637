package estimate

import (
	"math"
	"time"

	"github.com/senigami/factorywatch/internal/domain"
)

// Tunable constants carried over from the server's display logic. The ramp
// denominator and the extrapolation cap are deliberate: the cap keeps a job
// from showing 100% before the server confirms it, and the ramp hands the
// remaining-time estimate off from the static ETA to the observed rate once
// a quarter of the work is done.
const (
	// TimeProgressCap bounds linear time-based extrapolation just under
	// completion.
	TimeProgressCap = 0.99

	// BlendRampCeiling is the progress fraction at which the remaining-time
	// estimate switches fully to the observed rate.
	BlendRampCeiling = 0.25

	// MinRateProgress guards the observed-rate division against blow-up at
	// near-zero progress.
	MinRateProgress = 0.01
)

// Estimate is the blended display state for one job at a given instant.
// RemainingKnown is false when the job is not running or the server has not
// supplied a start time and ETA yet; Progress then carries the raw server
// value.
type Estimate struct {
	Progress         float64 `json:"progress"`
	RemainingSeconds int     `json:"remaining_seconds"`
	RemainingKnown   bool    `json:"remaining_known"`
}

// ForJob computes the blended progress fraction and smoothed remaining-time
// estimate for a job at the given instant. It is pure: callers drive the
// cadence (nominally 1 Hz) so the countdown advances between server updates.
func ForJob(j domain.Job, now time.Time) Estimate {
	if !j.Running() || j.StartedAt == nil || j.ETASeconds == nil || *j.ETASeconds <= 0 {
		return Estimate{Progress: j.Progress}
	}

	eta := *j.ETASeconds
	elapsed := float64(now.UnixMilli())/1000 - *j.StartedAt

	timeProgress := math.Min(TimeProgressCap, elapsed/eta)

	// Server-reported progress is a floor; extrapolation only pushes the
	// displayed value up, so progress never moves backwards between ticks.
	current := math.Max(j.Progress, timeProgress)

	blend := math.Min(1.0, current/BlendRampCeiling)

	estimatedRemaining := math.Max(0, eta-elapsed)
	actualRemaining := estimatedRemaining
	if current > MinRateProgress {
		actualRemaining = elapsed/current - elapsed
	}

	refined := estimatedRemaining*(1-blend) + actualRemaining*blend

	return Estimate{
		Progress:         current,
		RemainingSeconds: int(math.Max(0, math.Floor(refined))),
		RemainingKnown:   true,
	}
}
