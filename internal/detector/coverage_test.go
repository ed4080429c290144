package detector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAnalyzeCoverageRegularCadence(t *testing.T) {
	series := flatSeries("1.0", 10)

	stats := AnalyzeCoverage(testKey, series, PairParams{}, 4.0)
	if stats.Submissions != 10 {
		t.Fatalf("expected 10 submissions, got %d", stats.Submissions)
	}
	if stats.MedianGap != time.Minute {
		t.Fatalf("expected 1m median gap, got %s", stats.MedianGap)
	}
	if stats.LargeGaps != 0 {
		t.Fatalf("regular cadence must have no large gaps, got %d", stats.LargeGaps)
	}
	if !stats.CoverageRatio.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected full coverage, got %s", stats.CoverageRatio)
	}
}

func TestAnalyzeCoverageDetectsLargeGap(t *testing.T) {
	obs := []Observation{
		obsAt(0, "1.0"),
		obsAt(1, "1.0"),
		obsAt(2, "1.0"),
		obsAt(3, "1.0"),
		obsAt(60, "1.0"), // vendor outage
		obsAt(61, "1.0"),
	}

	stats := AnalyzeCoverage(testKey, NewSeries(obs), PairParams{}, 4.0)
	if stats.LargeGaps != 1 {
		t.Fatalf("expected one large gap, got %d", stats.LargeGaps)
	}
	if stats.WidestGap != 57*time.Minute {
		t.Fatalf("expected widest gap 57m, got %s", stats.WidestGap)
	}
	if stats.CoverageRatio.Cmp(decimal.NewFromInt(1)) >= 0 {
		t.Fatalf("coverage must drop below 1, got %s", stats.CoverageRatio)
	}
}

func TestAnalyzeCoverageRangeViolations(t *testing.T) {
	min := decimal.RequireFromString("0.5")
	max := decimal.RequireFromString("2.0")
	pp := PairParams{MinPrice: &min, MaxPrice: &max}

	obs := []Observation{
		obsAt(0, "1.0"),
		obsAt(1, "0.1"), // below min
		obsAt(2, "3.0"), // above max
		obsAt(3, "1.5"),
	}

	stats := AnalyzeCoverage(testKey, NewSeries(obs), pp, 4.0)
	if stats.RangeViolations != 2 {
		t.Fatalf("expected 2 range violations, got %d", stats.RangeViolations)
	}
}

func TestAnalyzeCoverageEmptyAndSingle(t *testing.T) {
	stats := AnalyzeCoverage(testKey, Series{}, PairParams{}, 4.0)
	if stats.Submissions != 0 {
		t.Fatalf("empty series must report zero submissions, got %d", stats.Submissions)
	}

	stats = AnalyzeCoverage(testKey, flatSeries("1.0", 1), PairParams{}, 4.0)
	if stats.Submissions != 1 {
		t.Fatalf("expected one submission, got %d", stats.Submissions)
	}
	if !stats.CoverageRatio.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("single observation covers its own span, got %s", stats.CoverageRatio)
	}
}
