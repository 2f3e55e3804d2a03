package reply

import (
	"testing"
	"time"
)

func TestStatsSnapshotPercentiles(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(time.Duration(ms)*time.Millisecond, ShapeNested, false)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
	if snap.Shapes[ShapeNested] != 5 {
		t.Fatalf("expected 5 nested replies, got %d", snap.Shapes[ShapeNested])
	}
}

func TestStatsCountsFailures(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record(10*time.Millisecond, ShapeOutput, false)
	stats.Record(20*time.Millisecond, ShapeUnknown, true)

	snap := stats.Snapshot()
	if snap.Count != 2 || snap.Failures != 1 {
		t.Fatalf("expected count=2 failures=1, got count=%d failures=%d", snap.Count, snap.Failures)
	}
	if snap.Shapes[ShapeOutput] != 1 || snap.Shapes[ShapeUnknown] != 0 {
		t.Fatalf("unexpected shape counts: %v", snap.Shapes)
	}
}

func TestStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewStats(10 * time.Millisecond)
	stats.Record(100*time.Millisecond, ShapeOutput, false)
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200*time.Millisecond, ShapeOutput, false)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected single 200ms sample, got %+v", snap)
	}
}

func TestStatsClampsNegativeDuration(t *testing.T) {
	stats := NewStats(time.Hour)
	stats.Record(-10*time.Millisecond, ShapeOutput, false)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 0 {
		t.Fatalf("expected clamped duration=0, got %+v", snap)
	}
}
