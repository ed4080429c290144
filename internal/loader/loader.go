package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"oracle-price-audit/internal/detector"
)

// Submission files carry one row per oracle vote:
//
//	validator_address,timestamp,EUR-USD,CHF-USD,...
//
// Pair columns hold fixed-point integers scaled by 10^18; an empty cell
// means the validator did not submit that pair in that row.

// timestampLayouts are tried in order when parsing submission rows.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Options locate the input files.
type Options struct {
	SubmissionsGlob string
	BenchmarkDir    string
}

// Dataset is the fully materialised input for one audit: per-group
// submission series plus per-pair benchmark series.
type Dataset struct {
	Groups     map[detector.GroupKey]detector.Series
	Benchmarks map[string]detector.Series
	Pairs      []string

	RowsLoaded   int
	RowsDropped  int
	CellsDropped int
}

// SortedKeys returns the group keys ordered by validator then pair, the
// canonical iteration order for deterministic output.
func (d *Dataset) SortedKeys() []detector.GroupKey {
	keys := make([]detector.GroupKey, 0, len(d.Groups))
	for key := range d.Groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Validator != keys[j].Validator {
			return keys[i].Validator < keys[j].Validator
		}
		return keys[i].Pair < keys[j].Pair
	})
	return keys
}

// Loader reads submission logs and benchmark series from disk.
type Loader struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Loader.
func New(opts Options, logger zerolog.Logger) *Loader {
	return &Loader{opts: opts, logger: logger.With().Str("component", "loader").Logger()}
}

// Load reads every submission file matching the glob and every benchmark
// series found next to them. No matching submission file is fatal; a
// missing benchmark directory only disables lag analysis.
func (l *Loader) Load() (*Dataset, error) {
	if l.opts.SubmissionsGlob == "" {
		return nil, errors.New("submissions glob not configured")
	}

	paths, err := filepath.Glob(l.opts.SubmissionsGlob)
	if err != nil {
		return nil, fmt.Errorf("expand submissions glob: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no submission files match %q", l.opts.SubmissionsGlob)
	}
	sort.Strings(paths)

	ds := &Dataset{
		Groups:     make(map[detector.GroupKey]detector.Series),
		Benchmarks: make(map[string]detector.Series),
	}

	raw := make(map[detector.GroupKey][]detector.Observation)
	pairSet := make(map[string]struct{})

	for _, path := range paths {
		if err := l.loadSubmissionFile(path, raw, pairSet, ds); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	for key, obs := range raw {
		ds.Groups[key] = detector.NewSeries(obs)
	}

	ds.Pairs = make([]string, 0, len(pairSet))
	for pair := range pairSet {
		ds.Pairs = append(ds.Pairs, pair)
	}
	sort.Strings(ds.Pairs)

	if err := l.loadBenchmarks(ds); err != nil {
		return nil, err
	}

	l.logger.Info().
		Int("files", len(paths)).
		Int("rows", ds.RowsLoaded).
		Int("rows_dropped", ds.RowsDropped).
		Int("cells_dropped", ds.CellsDropped).
		Int("groups", len(ds.Groups)).
		Int("benchmarks", len(ds.Benchmarks)).
		Msg("dataset loaded")

	return ds, nil
}

func (l *Loader) loadSubmissionFile(path string, raw map[detector.GroupKey][]detector.Observation, pairSet map[string]struct{}, ds *Dataset) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 {
		return fmt.Errorf("header needs validator, timestamp and at least one pair column, got %d columns", len(header))
	}

	pairs := make([]string, 0, len(header)-2)
	for _, name := range header[2:] {
		pair := strings.TrimSpace(name)
		pairs = append(pairs, pair)
		pairSet[pair] = struct{}{}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		if len(record) < 2 {
			ds.RowsDropped++
			continue
		}

		ts, ok := parseTimestamp(record[1])
		if !ok {
			ds.RowsDropped++
			l.logger.Debug().Str("file", filepath.Base(path)).Int("line", line).Str("value", record[1]).Msg("dropping row with unparseable timestamp")
			continue
		}

		validator := NormalizeValidator(record[0])
		if validator == "" {
			ds.RowsDropped++
			continue
		}

		ds.RowsLoaded++
		for i, pair := range pairs {
			col := i + 2
			if col >= len(record) {
				break
			}
			cell := strings.TrimSpace(record[col])
			if cell == "" {
				continue
			}
			price, ok := parseFixedPoint(cell)
			if !ok {
				ds.CellsDropped++
				continue
			}
			key := detector.GroupKey{Validator: validator, Pair: pair}
			raw[key] = append(raw[key], detector.Observation{Timestamp: ts, Price: price})
		}
	}

	return nil
}

func (l *Loader) loadBenchmarks(ds *Dataset) error {
	if l.opts.BenchmarkDir == "" {
		return nil
	}
	if _, err := os.Stat(l.opts.BenchmarkDir); err != nil {
		l.logger.Warn().Str("dir", l.opts.BenchmarkDir).Msg("benchmark directory unavailable; lag analysis disabled")
		return nil
	}

	for _, pair := range ds.Pairs {
		path := filepath.Join(l.opts.BenchmarkDir, pair+".csv")
		series, err := ReadBenchmarkCSV(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load benchmark %s: %w", pair, err)
		}
		ds.Benchmarks[pair] = series
	}
	return nil
}

// ReadBenchmarkCSV reads a minute-close series: header timestamp,close.
// Rows with bad timestamps or non-positive closes are skipped.
func ReadBenchmarkCSV(path string) (detector.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return detector.Series{}, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return detector.Series{}, fmt.Errorf("read header: %w", err)
	}

	var obs []detector.Observation
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return detector.Series{}, err
		}
		if len(record) < 2 {
			continue
		}
		ts, ok := parseTimestamp(record[0])
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil || price.Sign() <= 0 {
			continue
		}
		obs = append(obs, detector.Observation{Timestamp: ts, Price: price})
	}

	return detector.NewSeries(obs), nil
}

// NormalizeValidator canonicalises validator identifiers. Hex Ethereum
// addresses map to their EIP-55 checksum form; anything else passes
// through trimmed.
func NormalizeValidator(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if common.IsHexAddress(trimmed) {
		return common.HexToAddress(trimmed).Hex()
	}
	return trimmed
}

func parseTimestamp(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseFixedPoint converts a 10^18-scaled integer cell to a decimal price.
func parseFixedPoint(cell string) (decimal.Decimal, bool) {
	atoms, ok := new(big.Int).SetString(cell, 10)
	if !ok {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromBigInt(atoms, -18), true
}
