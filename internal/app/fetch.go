package app

import (
	"context"
	"errors"
	"path/filepath"

	"oracle-price-audit/internal/loader"
)

// FetchBenchmark downloads a pair's minute-close series from the
// configured market-data API and caches it in the benchmark directory.
func (a *App) FetchBenchmark(ctx context.Context, opts FetchOptions) error {
	if a.Config.Benchmark.BaseURL == "" {
		return errors.New("benchmark.base_url not configured")
	}
	if a.Config.Input.BenchmarkDir == "" {
		return errors.New("input.benchmark_dir not configured")
	}

	obs, err := a.newRemote().FetchCloses(ctx, opts.Pair, opts.From, opts.To)
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		a.Logger.Warn().Str("pair", opts.Pair).Msg("remote returned no candles")
		return nil
	}

	path := filepath.Join(a.Config.Input.BenchmarkDir, opts.Pair+".csv")
	if err := loader.WriteBenchmarkCSV(path, obs); err != nil {
		return err
	}

	a.Logger.Info().Str("pair", opts.Pair).Str("path", path).Int("candles", len(obs)).Msg("benchmark cached")
	return nil
}
