package detector

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// GroupKey identifies one validator/pair price sequence.
type GroupKey struct {
	Validator string
	Pair      string
}

// Observation is a single present price at a point in time. Rows where the
// pair value was absent never become observations.
type Observation struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// Series is a chronologically ordered sequence of observations. Duplicate
// timestamps are permitted.
type Series struct {
	obs []Observation
}

// NewSeries builds a series, sorting observations by timestamp. The sort is
// stable so duplicate timestamps keep their input order.
func NewSeries(obs []Observation) Series {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return Series{obs: sorted}
}

// Len reports the number of observations.
func (s Series) Len() int {
	return len(s.obs)
}

// At returns the i-th observation in chronological order.
func (s Series) At(i int) Observation {
	return s.obs[i]
}

// Span returns the first and last timestamps; ok is false for an empty
// series.
func (s Series) Span() (first, last time.Time, ok bool) {
	if len(s.obs) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.obs[0].Timestamp, s.obs[len(s.obs)-1].Timestamp, true
}

// FirstAtOrAfter returns the earliest observation whose timestamp is not
// before t. This is the as-of forward lookup used by the lag classifier;
// benchmark series with minute gaps resolve to the next available sample.
func (s Series) FirstAtOrAfter(t time.Time) (Observation, bool) {
	idx := sort.Search(len(s.obs), func(i int) bool {
		return !s.obs[i].Timestamp.Before(t)
	})
	if idx == len(s.obs) {
		return Observation{}, false
	}
	return s.obs[idx], true
}

// MinuteBuckets collapses the series to minute resolution, keeping the last
// observation of each bucket and truncating its timestamp to the bucket
// start.
func (s Series) MinuteBuckets() Series {
	if len(s.obs) == 0 {
		return Series{}
	}

	bucketed := make([]Observation, 0, len(s.obs))
	for _, o := range s.obs {
		bucket := o.Timestamp.Truncate(time.Minute)
		if n := len(bucketed); n > 0 && bucketed[n-1].Timestamp.Equal(bucket) {
			bucketed[n-1].Price = o.Price
			continue
		}
		bucketed = append(bucketed, Observation{Timestamp: bucket, Price: o.Price})
	}
	return Series{obs: bucketed}
}

// pctChange returns (future-now)/now. It is defined only when both prices
// are strictly positive.
func pctChange(now, future decimal.Decimal) (decimal.Decimal, bool) {
	if now.Sign() <= 0 || future.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return future.Sub(now).Div(now), true
}
