package detector

import (
	"time"

	"github.com/shopspring/decimal"
)

// Run is a maximal contiguous stretch of (near-)identical consecutive
// prices for one validator/pair. Length counts rows, not elapsed time.
type Run struct {
	Validator string
	Pair      string
	Value     decimal.Decimal
	Start     time.Time
	End       time.Time
	Length    int
}

// runAccumulator tracks the run currently being extended during the fold.
// value holds the run's first price, which is what the run reports.
type runAccumulator struct {
	value  decimal.Decimal
	start  time.Time
	end    time.Time
	length int
}

// DetectRuns scans the series chronologically and returns every maximal run
// whose length reaches minLength. Membership is pairwise: an observation
// extends the run when it differs from the immediately preceding price by
// strictly less than tolerance, so slow drift with sub-tolerance steps stays
// one run even once it has moved far from the run's first value. A run still
// open at the end of input is flushed.
func DetectRuns(key GroupKey, series Series, minLength int, tolerance decimal.Decimal) []Run {
	if series.Len() < minLength || minLength <= 0 {
		return nil
	}

	var runs []Run
	flush := func(acc runAccumulator) {
		if acc.length >= minLength {
			runs = append(runs, Run{
				Validator: key.Validator,
				Pair:      key.Pair,
				Value:     acc.value,
				Start:     acc.start,
				End:       acc.end,
				Length:    acc.length,
			})
		}
	}

	prev := series.At(0)
	acc := runAccumulator{value: prev.Price, start: prev.Timestamp, end: prev.Timestamp, length: 1}

	for i := 1; i < series.Len(); i++ {
		obs := series.At(i)
		if samePrice(prev.Price, obs.Price, tolerance) {
			acc.end = obs.Timestamp
			acc.length++
		} else {
			flush(acc)
			acc = runAccumulator{value: obs.Price, start: obs.Timestamp, end: obs.Timestamp, length: 1}
		}
		prev = obs
	}
	flush(acc)

	return runs
}

// samePrice treats prices as equal when they differ by less than tolerance.
// A difference of exactly tolerance breaks the run.
func samePrice(a, b, tolerance decimal.Decimal) bool {
	if tolerance.Sign() <= 0 {
		return a.Equal(b)
	}
	return a.Sub(b).Abs().Cmp(tolerance) < 0
}
