package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"oracle-price-audit/internal/detector"
)

// RenderScores prints the ranked per-validator table.
func RenderScores(w io.Writer, scores []ValidatorScore) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Validator\tSubmissions\tStaleRuns\tStaleRows\tStaleRatio\tLagEvents\tLargeGaps\tRangeViol")

	for _, score := range scores {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%d\t%d\t%s\t%d\t%d\t%d\n",
			score.Validator,
			score.Submissions,
			score.StaleRuns,
			score.StaleRows,
			formatDecimal(score.StaleRatio, 4),
			score.LagEvents,
			score.LargeGaps,
			score.RangeViolations,
		)
	}

	writer.Flush()
}

// RenderRuns prints detected stale runs, capped at limit rows (0 = all).
func RenderRuns(w io.Writer, runs []detector.Run, limit int) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Validator\tPair\tValue\tStart (UTC)\tEnd (UTC)\tLength")

	for i, run := range runs {
		if limit > 0 && i >= limit {
			fmt.Fprintf(writer, "... %d more\t\t\t\t\t\n", len(runs)-limit)
			break
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%d\n",
			run.Validator,
			run.Pair,
			formatDecimal(run.Value, 6),
			run.Start.UTC().Format(time.RFC3339),
			run.End.UTC().Format(time.RFC3339),
			run.Length,
		)
	}

	writer.Flush()
}

// RenderLagEvents prints flagged lag windows, capped at limit rows (0 = all).
func RenderLagEvents(w io.Writer, events []detector.LagEvent, limit int) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Validator\tPair\tWindow (UTC)\tPriceNow\tPriceFuture\tValidator%\tBenchmark%\tReason")

	for i, event := range events {
		if limit > 0 && i >= limit {
			fmt.Fprintf(writer, "... %d more\t\t\t\t\t\t\t\n", len(events)-limit)
			break
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			event.Validator,
			event.Pair,
			event.WindowStart.UTC().Format(time.RFC3339),
			formatDecimal(event.PriceNow, 6),
			formatDecimal(event.PriceFuture, 6),
			formatDecimal(event.ValidatorPctChange, 6),
			formatDecimal(event.BenchmarkPctChange, 6),
			sanitizeInline(event.Reason),
		)
	}

	writer.Flush()
}

// WriteFindingsCSV writes runs and lag events into one findings file.
func WriteFindingsCSV(path string, result *Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"kind", "validator", "pair", "start_ts", "end_ts", "value", "length", "validator_pct_change", "benchmark_pct_change", "reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, run := range result.Runs {
		record := []string{
			"stale_run",
			run.Validator,
			run.Pair,
			run.Start.UTC().Format(time.RFC3339),
			run.End.UTC().Format(time.RFC3339),
			run.Value.String(),
			fmt.Sprintf("%d", run.Length),
			"", "", "",
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	for _, event := range result.LagEvents {
		record := []string{
			"lag_event",
			event.Validator,
			event.Pair,
			event.WindowStart.UTC().Format(time.RFC3339),
			"",
			event.PriceNow.String(),
			"",
			event.ValidatorPctChange.String(),
			event.BenchmarkPctChange.String(),
			event.Reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// WritePairChart renders one pair's submitted series against the benchmark.
func WritePairChart(path, pair string, groups map[string]detector.Series, benchmark detector.Series, maxPoints int) error {
	if len(groups) == 0 && benchmark.Len() == 0 {
		return fmt.Errorf("no data to chart for pair %s", pair)
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	var series []chart.Series
	if benchmark.Len() > 0 {
		x, y := seriesPoints(benchmark, maxPoints)
		series = append(series, chart.TimeSeries{Name: "Benchmark", XValues: x, YValues: y})
	}

	validators := make([]string, 0, len(groups))
	for validator := range groups {
		validators = append(validators, validator)
	}
	sort.Strings(validators)
	for _, validator := range validators {
		x, y := seriesPoints(groups[validator], maxPoints)
		if len(x) == 0 {
			continue
		}
		series = append(series, chart.TimeSeries{Name: shortID(validator), XValues: x, YValues: y})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: fmt.Sprintf("Price (%s)", pair),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.4f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func seriesPoints(series detector.Series, maxPoints int) ([]time.Time, []float64) {
	n := series.Len()
	if n == 0 {
		return nil, nil
	}

	indexes := downsampleIndexes(n, maxPoints)
	x := make([]time.Time, 0, len(indexes))
	y := make([]float64, 0, len(indexes))
	for _, idx := range indexes {
		obs := series.At(idx)
		x = append(x, obs.Timestamp)
		y = append(y, obs.Price.InexactFloat64())
	}
	return x, y
}

func downsampleIndexes(n, max int) []int {
	if max <= 0 || n <= max {
		indexes := make([]int, n)
		for i := range indexes {
			indexes[i] = i
		}
		return indexes
	}

	indexes := make([]int, 0, max)
	step := float64(n-1) / float64(max-1)
	last := -1
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= n {
			idx = n - 1
		}
		if idx == last {
			continue
		}
		indexes = append(indexes, idx)
		last = idx
	}
	return indexes
}

func shortID(validator string) string {
	if len(validator) > 12 {
		return validator[:8] + "…" + validator[len(validator)-4:]
	}
	return validator
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
