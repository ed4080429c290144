package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var lagThreshold = decimal.RequireFromString("0.05")

// flatSeries returns count minute-spaced observations of one price.
func flatSeries(price string, count int) Series {
	return minuteSeries(repeat(price, count)...)
}

// benchmarkPoints builds a sparse benchmark series from minute/price pairs.
func benchmarkPoints(points map[int]string) Series {
	obs := make([]Observation, 0, len(points))
	for minute, price := range points {
		obs = append(obs, obsAt(minute, price))
	}
	return NewSeries(obs)
}

func TestDetectLagFlagsStaticPriceDuringBenchmarkMove(t *testing.T) {
	submitted := flatSeries("100", 61)
	benchmark := benchmarkPoints(map[int]string{0: "100", 60: "110"})

	events := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold)
	if len(events) == 0 {
		t.Fatal("a 10% benchmark move against a flat price must be flagged")
	}

	first := events[0]
	if !first.WindowStart.Equal(testStart) {
		t.Fatalf("first flagged window should anchor at minute 0, got %s", first.WindowStart)
	}
	if !first.ValidatorPctChange.IsZero() {
		t.Fatalf("validator pct change should be zero, got %s", first.ValidatorPctChange)
	}
	if !first.BenchmarkPctChange.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("benchmark pct change should be 0.1, got %s", first.BenchmarkPctChange)
	}
	if first.Reason != ReasonBenchmarkMoved {
		t.Fatalf("unexpected reason %q", first.Reason)
	}
}

func TestDetectLagNotFlaggedWhenValidatorTracks(t *testing.T) {
	// Validator jumps 10% at minute 60, matching the benchmark.
	prices := append(repeat("100", 60), "110")
	submitted := minuteSeries(prices...)
	benchmark := benchmarkPoints(map[int]string{0: "100", 60: "110"})

	events := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold)
	for _, event := range events {
		if event.WindowStart.Equal(testStart) {
			t.Fatalf("window 0 must not be flagged when the validator tracked the move: %+v", event)
		}
	}
}

func TestDetectLagNotFlaggedOnSmallBenchmarkMove(t *testing.T) {
	submitted := flatSeries("100", 61)
	benchmark := benchmarkPoints(map[int]string{0: "100", 60: "102"}) // 2% move

	if events := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold); len(events) != 0 {
		t.Fatalf("a 2%% benchmark move is below threshold, got %d events", len(events))
	}
}

func TestDetectLagUndefinedValidatorChange(t *testing.T) {
	// Only one observation: no forward lookup target exists.
	submitted := flatSeries("100", 1)
	benchmark := benchmarkPoints(map[int]string{0: "100", 60: "110"})

	if events := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold); len(events) != 0 {
		t.Fatalf("undefined validator change must never be flagged, got %d events", len(events))
	}
}

func TestDetectLagUndefinedOnNonPositivePrice(t *testing.T) {
	prices := append(repeat("0", 61), "100")
	submitted := minuteSeries(prices...)
	benchmark := benchmarkPoints(map[int]string{0: "100", 60: "110", 120: "110"})

	events := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold)
	for _, event := range events {
		if event.PriceNow.Sign() <= 0 {
			t.Fatalf("window with non-positive base price must not be flagged: %+v", event)
		}
	}
}

func TestDetectLagSkipsMissingBenchmark(t *testing.T) {
	submitted := flatSeries("100", 61)

	if events := DetectLag(testKey, submitted, Series{}, time.Hour, lagThreshold); events != nil {
		t.Fatalf("missing benchmark must yield no events, got %d", len(events))
	}
}

func TestDetectLagBenchmarkGapResolvesForward(t *testing.T) {
	submitted := flatSeries("100", 61)
	// No benchmark sample at exactly minute 60; the as-of lookup must take
	// minute 62.
	benchmark := benchmarkPoints(map[int]string{0: "100", 62: "110"})

	events := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold)
	if len(events) == 0 {
		t.Fatal("benchmark gaps must resolve to the next sample, expected a flagged window")
	}
	if !events[0].BenchmarkPctChange.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("expected benchmark pct 0.1, got %s", events[0].BenchmarkPctChange)
	}
}

func TestDetectLagDeterministic(t *testing.T) {
	submitted := flatSeries("100", 61)
	benchmark := benchmarkPoints(map[int]string{0: "100", 30: "104", 60: "110"})

	first := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold)
	second := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold)

	if len(first) != len(second) {
		t.Fatalf("event counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].WindowStart.Equal(second[i].WindowStart) ||
			!first[i].BenchmarkPctChange.Equal(second[i].BenchmarkPctChange) ||
			!first[i].ValidatorPctChange.Equal(second[i].ValidatorPctChange) {
			t.Fatalf("event %d differs between identical inputs", i)
		}
	}
}

// TestStaleValidatorEndToEnd exercises the run detector and lag classifier
// on the same scenario: a validator pinned at 100 while the benchmark
// climbs to 106.
func TestStaleValidatorEndToEnd(t *testing.T) {
	submitted := flatSeries("100", 61)
	benchmark := benchmarkPoints(map[int]string{0: "100", 30: "103", 60: "106"})

	runs := DetectRuns(testKey, submitted, 30, defaultTolerance)
	if len(runs) != 1 {
		t.Fatalf("expected one stale run, got %d", len(runs))
	}
	if runs[0].Length != 61 {
		t.Fatalf("expected run length 61, got %d", runs[0].Length)
	}

	events := DetectLag(testKey, submitted, benchmark, time.Hour, lagThreshold)
	if len(events) == 0 {
		t.Fatal("expected at least one lag event")
	}
	first := events[0]
	if !first.WindowStart.Equal(testStart) {
		t.Fatalf("expected first window at minute 0, got %s", first.WindowStart)
	}
	if !first.BenchmarkPctChange.Equal(decimal.RequireFromString("0.06")) {
		t.Fatalf("expected benchmark pct 0.06, got %s", first.BenchmarkPctChange)
	}
	if !first.ValidatorPctChange.IsZero() {
		t.Fatalf("expected validator pct 0, got %s", first.ValidatorPctChange)
	}
}
