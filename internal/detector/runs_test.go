package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testStart = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func minuteSeries(prices ...string) Series {
	obs := make([]Observation, 0, len(prices))
	for i, p := range prices {
		obs = append(obs, Observation{
			Timestamp: testStart.Add(time.Duration(i) * time.Minute),
			Price:     decimal.RequireFromString(p),
		})
	}
	return NewSeries(obs)
}

func repeat(price string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = price
	}
	return out
}

var testKey = GroupKey{Validator: "0xAb5801a7D398351b8bE11C439e05C5B3259AeC9B", Pair: "EUR-USD"}

var defaultTolerance = decimal.RequireFromString("0.000000001")

func TestDetectRunsSingleRun(t *testing.T) {
	series := minuteSeries(repeat("1.0", 40)...)

	runs := DetectRuns(testKey, series, 30, defaultTolerance)
	if len(runs) != 1 {
		t.Fatalf("expected exactly one run, got %d", len(runs))
	}

	run := runs[0]
	if run.Length != 40 {
		t.Fatalf("expected length 40, got %d", run.Length)
	}
	if !run.Start.Equal(testStart) {
		t.Fatalf("unexpected start %s", run.Start)
	}
	if !run.End.Equal(testStart.Add(39 * time.Minute)) {
		t.Fatalf("unexpected end %s", run.End)
	}
	if run.Validator != testKey.Validator || run.Pair != testKey.Pair {
		t.Fatalf("run lost its group identity: %+v", run)
	}
}

func TestDetectRunsBelowThreshold(t *testing.T) {
	series := minuteSeries(repeat("1.0", 29)...)

	if runs := DetectRuns(testKey, series, 30, defaultTolerance); len(runs) != 0 {
		t.Fatalf("29 rows must not produce a run, got %d", len(runs))
	}
}

func TestDetectRunsTwoAdjacentRuns(t *testing.T) {
	prices := append(repeat("1.0", 35), repeat("2.0", 35)...)
	series := minuteSeries(prices...)

	runs := DetectRuns(testKey, series, 30, defaultTolerance)
	if len(runs) != 2 {
		t.Fatalf("expected two runs, got %d", len(runs))
	}
	if runs[0].Length != 35 || runs[1].Length != 35 {
		t.Fatalf("expected two runs of length 35, got %d and %d", runs[0].Length, runs[1].Length)
	}
	if !runs[0].End.Before(runs[1].Start) {
		t.Fatalf("runs must not overlap: first ends %s, second starts %s", runs[0].End, runs[1].Start)
	}
	if !runs[0].Value.Equal(decimal.RequireFromString("1.0")) || !runs[1].Value.Equal(decimal.RequireFromString("2.0")) {
		t.Fatalf("unexpected run values %s / %s", runs[0].Value, runs[1].Value)
	}
}

func TestDetectRunsToleranceBoundary(t *testing.T) {
	// Diff of 5e-10 is below the 1e-9 tolerance: still the same run.
	below := append(repeat("1.0", 20), repeat("1.0000000005", 20)...)
	runs := DetectRuns(testKey, minuteSeries(below...), 30, defaultTolerance)
	if len(runs) != 1 || runs[0].Length != 40 {
		t.Fatalf("sub-tolerance diff must not break the run: %+v", runs)
	}

	// Diff of exactly 1e-9 breaks the run.
	at := append(repeat("1.0", 20), repeat("1.000000001", 20)...)
	if runs := DetectRuns(testKey, minuteSeries(at...), 30, defaultTolerance); len(runs) != 0 {
		t.Fatalf("diff equal to tolerance must break the run, got %+v", runs)
	}
}

func TestDetectRunsSubToleranceDriftStaysOneRun(t *testing.T) {
	// Every step drifts by 6e-10, below the 1e-9 tolerance, but over 32
	// rows the cumulative drift is well above it. Membership compares
	// consecutive prices, so this is still a single run.
	step := decimal.RequireFromString("0.0000000006")
	price := decimal.RequireFromString("1.0")
	obs := make([]Observation, 0, 32)
	for i := 0; i < 32; i++ {
		obs = append(obs, Observation{
			Timestamp: testStart.Add(time.Duration(i) * time.Minute),
			Price:     price,
		})
		price = price.Add(step)
	}

	runs := DetectRuns(testKey, NewSeries(obs), 30, defaultTolerance)
	if len(runs) != 1 || runs[0].Length != 32 {
		t.Fatalf("pairwise sub-tolerance drift must form one run of 32, got %+v", runs)
	}
	if !runs[0].Value.Equal(decimal.RequireFromString("1.0")) {
		t.Fatalf("run must report its first price, got %s", runs[0].Value)
	}
	if !runs[0].End.Equal(testStart.Add(31 * time.Minute)) {
		t.Fatalf("unexpected run end %s", runs[0].End)
	}
}

func TestDetectRunsOpenRunFlushed(t *testing.T) {
	prices := append([]string{"5.0", "6.0", "7.0"}, repeat("8.0", 31)...)
	series := minuteSeries(prices...)

	runs := DetectRuns(testKey, series, 30, defaultTolerance)
	if len(runs) != 1 {
		t.Fatalf("open run at end of input must be flushed, got %d runs", len(runs))
	}
	if runs[0].Length != 31 {
		t.Fatalf("expected length 31, got %d", runs[0].Length)
	}
	if !runs[0].End.Equal(testStart.Add(33 * time.Minute)) {
		t.Fatalf("open run must end on the final row, got %s", runs[0].End)
	}
}

func TestDetectRunsZeroToleranceExactEquality(t *testing.T) {
	prices := append(repeat("1.0", 30), "1.0000000005")
	runs := DetectRuns(testKey, minuteSeries(prices...), 30, decimal.Zero)
	if len(runs) != 1 || runs[0].Length != 30 {
		t.Fatalf("zero tolerance must require exact equality: %+v", runs)
	}
}

func TestDetectRunsDuplicateTimestamps(t *testing.T) {
	obs := make([]Observation, 0, 32)
	for i := 0; i < 32; i++ {
		obs = append(obs, Observation{
			Timestamp: testStart, // all rows share one timestamp
			Price:     decimal.RequireFromString("3.5"),
		})
	}

	runs := DetectRuns(testKey, NewSeries(obs), 30, defaultTolerance)
	if len(runs) != 1 || runs[0].Length != 32 {
		t.Fatalf("duplicate timestamps must not break run detection: %+v", runs)
	}
}
