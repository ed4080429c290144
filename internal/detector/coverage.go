package detector

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CoverageStats summarise submission cadence and range hygiene for one
// validator/pair group.
type CoverageStats struct {
	Validator       string
	Pair            string
	Submissions     int
	First           time.Time
	Last            time.Time
	MedianGap       time.Duration
	WidestGap       time.Duration
	LargeGaps       int
	CoverageRatio   decimal.Decimal
	RangeViolations int
}

// AnalyzeCoverage computes cadence statistics for a group: median and
// widest inter-submission gap, the number of gaps exceeding gapMultiple
// times the median, the fraction of minute buckets in the observed span
// that carry at least one submission, and how many observations fall
// outside the pair's configured price bounds.
func AnalyzeCoverage(key GroupKey, series Series, pp PairParams, gapMultiple float64) CoverageStats {
	stats := CoverageStats{
		Validator:   key.Validator,
		Pair:        key.Pair,
		Submissions: series.Len(),
	}

	first, last, ok := series.Span()
	if !ok {
		return stats
	}
	stats.First = first
	stats.Last = last
	stats.RangeViolations = countRangeViolations(series, pp)

	if series.Len() < 2 {
		stats.CoverageRatio = decimal.NewFromInt(1)
		return stats
	}

	gaps := make([]time.Duration, 0, series.Len()-1)
	for i := 1; i < series.Len(); i++ {
		gap := series.At(i).Timestamp.Sub(series.At(i - 1).Timestamp)
		gaps = append(gaps, gap)
		if gap > stats.WidestGap {
			stats.WidestGap = gap
		}
	}

	stats.MedianGap = medianGap(gaps)
	if stats.MedianGap > 0 {
		cutoff := time.Duration(float64(stats.MedianGap) * gapMultiple)
		for _, gap := range gaps {
			if gap > cutoff {
				stats.LargeGaps++
			}
		}
	}

	stats.CoverageRatio = coverageRatio(series, first, last)
	return stats
}

func countRangeViolations(series Series, pp PairParams) int {
	if pp.MinPrice == nil && pp.MaxPrice == nil {
		return 0
	}
	violations := 0
	for i := 0; i < series.Len(); i++ {
		price := series.At(i).Price
		if pp.MinPrice != nil && price.Cmp(*pp.MinPrice) < 0 {
			violations++
			continue
		}
		if pp.MaxPrice != nil && price.Cmp(*pp.MaxPrice) > 0 {
			violations++
		}
	}
	return violations
}

func medianGap(gaps []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(gaps))
	copy(sorted, gaps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// coverageRatio is distinct submitted minute buckets over the minutes in
// the closed span [first, last].
func coverageRatio(series Series, first, last time.Time) decimal.Decimal {
	buckets := series.MinuteBuckets()
	spanMinutes := last.Truncate(time.Minute).Sub(first.Truncate(time.Minute))/time.Minute + 1
	if spanMinutes <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(buckets.Len())).Div(decimal.NewFromInt(int64(spanMinutes)))
}
