package loader

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"oracle-price-audit/internal/detector"
)

const candlesPath = "/candles"

// RemoteOptions parameterise the market-data benchmark fetcher.
type RemoteOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Remote downloads minute-close benchmark series from a market-data API so
// they can be cached locally as CSV and reused across audits.
type Remote struct {
	opts    RemoteOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewRemote constructs a benchmark fetcher.
func NewRemote(opts RemoteOptions, logger zerolog.Logger) *Remote {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Remote{
		opts:    opts,
		logger:  logger.With().Str("component", "benchmark_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// FetchCloses retrieves the minute closes for pair in [from, to).
func (r *Remote) FetchCloses(ctx context.Context, pair string, from, to time.Time) ([]detector.Observation, error) {
	if r.baseURL == "" {
		return nil, errors.New("benchmark base url not configured")
	}
	if pair == "" {
		return nil, errors.New("pair is required")
	}
	if !from.Before(to) {
		return nil, errors.New("from must be before to")
	}

	query := url.Values{}
	query.Set("pair", pair)
	query.Set("interval", "1m")
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))

	endpoint := r.baseURL + candlesPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "oracleaudit/1.0")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var res candlesResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, err
	}

	obs := make([]detector.Observation, 0, len(res.Candles))
	for _, candle := range res.Candles {
		ts, ok := parseTimestamp(candle.Timestamp)
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(candle.Close)
		if err != nil || price.Sign() <= 0 {
			continue
		}
		obs = append(obs, detector.Observation{Timestamp: ts, Price: price})
	}

	r.logger.Info().Str("pair", pair).Int("candles", len(obs)).Msg("benchmark series fetched")
	return obs, nil
}

// WriteBenchmarkCSV caches a fetched series in the on-disk benchmark
// layout consumed by the loader.
func WriteBenchmarkCSV(path string, obs []detector.Observation) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "close"}); err != nil {
		return err
	}
	for _, o := range obs {
		if err := writer.Write([]string{o.Timestamp.UTC().Format(time.RFC3339), o.Price.String()}); err != nil {
			return err
		}
	}
	return writer.Error()
}

type candlesResponse struct {
	Pair    string `json:"pair"`
	Candles []struct {
		Timestamp string `json:"ts"`
		Close     string `json:"close"`
	} `json:"candles"`
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("market data api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("market data api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("market data api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("market data api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("market data api error (%d)", status)
}
