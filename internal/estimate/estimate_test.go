package estimate

import (
	"testing"
	"time"

	"github.com/senigami/factorywatch/internal/domain"
)

func f64(v float64) *float64 { return &v }

func runningJob(startedAt, eta, progress float64) domain.Job {
	return domain.Job{
		ID:          "job-1",
		ChapterFile: "ch01.txt",
		Status:      domain.JobStatusRunning,
		StartedAt:   f64(startedAt),
		ETASeconds:  f64(eta),
		Progress:    progress,
	}
}

func TestForJobEndToEndScenario(t *testing.T) {
	// Job started 10s ago with a 100s ETA and 5% server progress:
	// timeProgress = 0.1 beats the server value, blend = 0.4, and both
	// remaining estimates land on 90s.
	now := time.Unix(1_700_000_100, 0)
	j := runningJob(float64(now.Unix())-10, 100, 0.05)

	est := ForJob(j, now)
	if !est.RemainingKnown {
		t.Fatal("expected remaining to be known for a running job with ETA")
	}
	if est.Progress < 0.0999 || est.Progress > 0.1001 {
		t.Fatalf("expected progress ~0.1, got %f", est.Progress)
	}
	if est.RemainingSeconds != 90 {
		t.Fatalf("expected 90s remaining, got %d", est.RemainingSeconds)
	}
}

func TestForJobNotRunning(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	queued := domain.Job{Status: domain.JobStatusQueued, Progress: 0.3}
	est := ForJob(queued, now)
	if est.RemainingKnown {
		t.Fatal("queued job should have no remaining estimate")
	}
	if est.Progress != 0.3 {
		t.Fatalf("expected raw server progress 0.3, got %f", est.Progress)
	}

	// Running but the server has not supplied start/ETA yet.
	noEta := domain.Job{Status: domain.JobStatusRunning, StartedAt: f64(float64(now.Unix()))}
	if est := ForJob(noEta, now); est.RemainingKnown {
		t.Fatal("running job without ETA should have no remaining estimate")
	}
}

func TestForJobProgressMonotonicOverTicks(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	j := runningJob(float64(start.Unix()), 100, 0.2)

	prev := -1.0
	for tick := 0; tick <= 200; tick++ {
		est := ForJob(j, start.Add(time.Duration(tick)*time.Second))
		if est.Progress < prev {
			t.Fatalf("progress decreased at tick %d: %f -> %f", tick, prev, est.Progress)
		}
		prev = est.Progress
	}
}

func TestForJobTimeProgressCapped(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	j := runningJob(float64(start.Unix()), 10, 0)

	// Far past the ETA, extrapolation must stall just under completion.
	est := ForJob(j, start.Add(10*time.Minute))
	if est.Progress != TimeProgressCap {
		t.Fatalf("expected progress capped at %f, got %f", TimeProgressCap, est.Progress)
	}
}

func TestForJobBlendBoundaries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// At zero progress the blend is 0 and remaining equals floor(eta-elapsed).
	// elapsed=0 keeps timeProgress at 0 too.
	zero := runningJob(float64(now.Unix()), 100.5, 0)
	est := ForJob(zero, now)
	if est.RemainingSeconds != 100 {
		t.Fatalf("expected static-ETA remaining 100, got %d", est.RemainingSeconds)
	}

	// At >=25% progress the blend is 1 and remaining equals the observed
	// rate: elapsed/progress - elapsed = 30/0.5 - 30 = 30.
	half := runningJob(float64(now.Unix())-30, 1000, 0.5)
	est = ForJob(half, now)
	if est.RemainingSeconds != 30 {
		t.Fatalf("expected rate-based remaining 30, got %d", est.RemainingSeconds)
	}
}

func TestForJobDivisionGuard(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// Progress at or below 1% must fall back to the static estimate exactly,
	// with no division-by-near-zero artifact. Keep timeProgress below the
	// guard too: elapsed=1s of a 1000s ETA gives 0.001.
	j := runningJob(float64(now.Unix())-1, 1000, 0.005)
	est := ForJob(j, now)
	if est.RemainingSeconds != 999 {
		t.Fatalf("expected static remaining 999, got %d", est.RemainingSeconds)
	}
}

func TestForJobRemainingNeverNegative(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	j := runningJob(float64(start.Unix()), 10, 0.98)

	est := ForJob(j, start.Add(time.Hour))
	if est.RemainingSeconds < 0 {
		t.Fatalf("remaining went negative: %d", est.RemainingSeconds)
	}
}
