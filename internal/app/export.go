package app

import (
	"context"
	"errors"
	"fmt"

	"oracle-price-audit/internal/detector"
	"oracle-price-audit/internal/report"
)

// Export renders audit artefacts: a findings CSV and/or a per-pair PNG
// chart of submitted prices against the benchmark.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.PNGPath != "" && opts.Pair == "" {
		return errors.New("--pair is required when exporting a chart")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	dataset, err := a.newLoader().Load()
	if err != nil {
		return err
	}

	if opts.CSVPath != "" {
		result, err := a.analyze(ctx, dataset, a.Config.Audit.Workers)
		if err != nil {
			return err
		}
		if err := report.WriteFindingsCSV(opts.CSVPath, result); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).
			Int("stale_runs", len(result.Runs)).
			Int("lag_events", len(result.LagEvents)).
			Msg("findings exported")
	}

	if opts.PNGPath != "" {
		groups := make(map[string]detector.Series)
		for key, series := range dataset.Groups {
			if key.Pair == opts.Pair {
				groups[key.Validator] = series.MinuteBuckets()
			}
		}
		if len(groups) == 0 {
			return fmt.Errorf("no submissions found for pair %s", opts.Pair)
		}

		benchmark := dataset.Benchmarks[opts.Pair]
		if err := report.WritePairChart(opts.PNGPath, opts.Pair, groups, benchmark, opts.MaxPoints); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Str("pair", opts.Pair).Msg("chart exported")
	}

	return nil
}
