package detector

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"oracle-price-audit/internal/config"
)

// Params carries resolved detector thresholds.
type Params struct {
	MinRunLength int
	Tolerance    decimal.Decimal
	LagHorizon   time.Duration
	LagThreshold decimal.Decimal
	GapMultiple  float64

	pairs map[string]config.PairConfig
}

// PairParams are the thresholds effective for a single pair, after any
// per-pair override has been applied.
type PairParams struct {
	Tolerance    decimal.Decimal
	LagThreshold decimal.Decimal
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
}

// ParamsFromConfig resolves detector configuration into decimal thresholds.
// Pair override keys are folded to upper case because viper lowercases map
// keys read from config files.
func ParamsFromConfig(cfg config.DetectorConfig) Params {
	pairs := make(map[string]config.PairConfig, len(cfg.Pairs))
	for name, pc := range cfg.Pairs {
		pairs[strings.ToUpper(name)] = pc
	}

	return Params{
		MinRunLength: cfg.MinRunLength,
		Tolerance:    decimal.NewFromFloat(cfg.Tolerance),
		LagHorizon:   cfg.LagHorizon,
		LagThreshold: decimal.NewFromFloat(cfg.LagThreshold),
		GapMultiple:  cfg.GapMultiple,
		pairs:        pairs,
	}
}

// ForPair returns the thresholds effective for pair.
func (p Params) ForPair(pair string) PairParams {
	pp := PairParams{
		Tolerance:    p.Tolerance,
		LagThreshold: p.LagThreshold,
	}

	override, ok := p.pairs[strings.ToUpper(pair)]
	if !ok {
		return pp
	}

	if override.Tolerance != nil {
		pp.Tolerance = decimal.NewFromFloat(*override.Tolerance)
	}
	if override.LagThreshold != nil {
		pp.LagThreshold = decimal.NewFromFloat(*override.LagThreshold)
	}
	if override.MinPrice != nil {
		min := decimal.NewFromFloat(*override.MinPrice)
		pp.MinPrice = &min
	}
	if override.MaxPrice != nil {
		max := decimal.NewFromFloat(*override.MaxPrice)
		pp.MaxPrice = &max
	}
	return pp
}
