package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"oracle-price-audit/internal/detector"
)

// Result bundles everything one audit produced.
type Result struct {
	GeneratedAt time.Time

	Runs      []detector.Run
	LagEvents []detector.LagEvent
	Coverage  []detector.CoverageStats
	Scores    []ValidatorScore

	RowsLoaded   int
	RowsDropped  int
	CellsDropped int
	GroupsFailed int
}

// ValidatorScore joins detector output back to submission counts for one
// validator across all pairs.
type ValidatorScore struct {
	Validator       string
	Submissions     int
	StaleRuns       int
	StaleRows       int
	StaleRatio      decimal.Decimal
	LagEvents       int
	LargeGaps       int
	RangeViolations int
}

// BuildScores aggregates per-group findings into per-validator scores,
// ranked worst first by stale ratio with validator id as the tie-break.
func BuildScores(runs []detector.Run, lags []detector.LagEvent, coverage []detector.CoverageStats) []ValidatorScore {
	byValidator := make(map[string]*ValidatorScore)
	get := func(validator string) *ValidatorScore {
		score, ok := byValidator[validator]
		if !ok {
			score = &ValidatorScore{Validator: validator}
			byValidator[validator] = score
		}
		return score
	}

	for _, cov := range coverage {
		score := get(cov.Validator)
		score.Submissions += cov.Submissions
		score.LargeGaps += cov.LargeGaps
		score.RangeViolations += cov.RangeViolations
	}
	for _, run := range runs {
		score := get(run.Validator)
		score.StaleRuns++
		score.StaleRows += run.Length
	}
	for _, event := range lags {
		get(event.Validator).LagEvents++
	}

	scores := make([]ValidatorScore, 0, len(byValidator))
	for _, score := range byValidator {
		if score.Submissions > 0 {
			score.StaleRatio = decimal.NewFromInt(int64(score.StaleRows)).
				Div(decimal.NewFromInt(int64(score.Submissions)))
		}
		scores = append(scores, *score)
	}

	sort.Slice(scores, func(i, j int) bool {
		if cmp := scores[i].StaleRatio.Cmp(scores[j].StaleRatio); cmp != 0 {
			return cmp > 0
		}
		return scores[i].Validator < scores[j].Validator
	})
	return scores
}

// SortFindings puts runs and lag events into the canonical deterministic
// order: validator, pair, then chronological start.
func SortFindings(result *Result) {
	sort.Slice(result.Runs, func(i, j int) bool {
		a, b := result.Runs[i], result.Runs[j]
		if a.Validator != b.Validator {
			return a.Validator < b.Validator
		}
		if a.Pair != b.Pair {
			return a.Pair < b.Pair
		}
		return a.Start.Before(b.Start)
	})
	sort.Slice(result.LagEvents, func(i, j int) bool {
		a, b := result.LagEvents[i], result.LagEvents[j]
		if a.Validator != b.Validator {
			return a.Validator < b.Validator
		}
		if a.Pair != b.Pair {
			return a.Pair < b.Pair
		}
		return a.WindowStart.Before(b.WindowStart)
	})
	sort.Slice(result.Coverage, func(i, j int) bool {
		a, b := result.Coverage[i], result.Coverage[j]
		if a.Validator != b.Validator {
			return a.Validator < b.Validator
		}
		return a.Pair < b.Pair
	})
}
