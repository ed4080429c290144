package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"oracle-price-audit/internal/config"
	"oracle-price-audit/internal/loader"
	"oracle-price-audit/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newLoader() *loader.Loader {
	return loader.New(loader.Options{
		SubmissionsGlob: a.Config.Input.SubmissionsGlob,
		BenchmarkDir:    a.Config.Input.BenchmarkDir,
	}, a.Logger)
}

func (a *App) newRemote() *loader.Remote {
	return loader.NewRemote(loader.RemoteOptions{
		BaseURL:   a.Config.Benchmark.BaseURL,
		Timeout:   a.Config.Benchmark.RequestTimeout,
		UserAgent: a.Config.Benchmark.UserAgent,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// AuditOptions configure the audit pipeline.
type AuditOptions struct {
	Workers     int
	FindingsCSV string
	TableLimit  int
}

// ExportOptions hold parameters for exporting audit artefacts.
type ExportOptions struct {
	Pair      string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit   int
	AuditID int64
}

// FetchOptions configure the benchmark download.
type FetchOptions struct {
	Pair string
	From time.Time
	To   time.Time
}
