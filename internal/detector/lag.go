package detector

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReasonBenchmarkMoved labels windows where the benchmark moved past the
// threshold while the submitted price did not.
const ReasonBenchmarkMoved = "benchmark_moved_price_static"

// LagEvent is one flagged window: the benchmark made a significant move
// over the horizon and the validator's reported price failed to track it.
type LagEvent struct {
	Validator          string
	Pair               string
	WindowStart        time.Time
	PriceNow           decimal.Decimal
	PriceFuture        decimal.Decimal
	ValidatorPctChange decimal.Decimal
	BenchmarkPctChange decimal.Decimal
	Reason             string
}

// DetectLag compares the validator's price change over a forward horizon
// against the benchmark's change anchored at the same minute bucket. Each
// window evaluation is independent; windows with an undefined percent
// change on either side are never flagged.
func DetectLag(key GroupKey, submitted, benchmark Series, horizon time.Duration, threshold decimal.Decimal) []LagEvent {
	if benchmark.Len() == 0 {
		return nil
	}

	buckets := submitted.MinuteBuckets()

	var events []LagEvent
	for i := 0; i < buckets.Len(); i++ {
		now := buckets.At(i)
		target := now.Timestamp.Add(horizon)

		future, ok := buckets.FirstAtOrAfter(target)
		if !ok {
			continue
		}
		validatorPct, ok := pctChange(now.Price, future.Price)
		if !ok {
			continue
		}

		benchNow, ok := benchmark.FirstAtOrAfter(now.Timestamp)
		if !ok {
			continue
		}
		benchFuture, ok := benchmark.FirstAtOrAfter(target)
		if !ok {
			continue
		}
		benchmarkPct, ok := pctChange(benchNow.Price, benchFuture.Price)
		if !ok {
			continue
		}

		if benchmarkPct.Abs().Cmp(threshold) > 0 && validatorPct.Abs().Cmp(threshold) < 0 {
			events = append(events, LagEvent{
				Validator:          key.Validator,
				Pair:               key.Pair,
				WindowStart:        now.Timestamp,
				PriceNow:           now.Price,
				PriceFuture:        future.Price,
				ValidatorPctChange: validatorPct,
				BenchmarkPctChange: benchmarkPct,
				Reason:             ReasonBenchmarkMoved,
			})
		}
	}

	return events
}
