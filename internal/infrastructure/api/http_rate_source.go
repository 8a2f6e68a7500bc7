package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/repository"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

const (
	exchangeRatesPath = "/exchange_rates"
	currenciesPath    = "/currencies"

	// maxBodySize caps how much of a provider response is read
	maxBodySize = 16 << 20
)

var _ repository.RateSource = (*HTTPRateSource)(nil)

// errStatus is returned for non-retryable provider statuses
var errStatus = errors.New("unexpected provider status")

// HTTPRateSourceOptions configures the remote provider client
type HTTPRateSourceOptions struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    uint64
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// HTTPRateSource reads exchange rates from a remote provider over HTTP
type HTTPRateSource struct {
	baseURL    string
	httpClient *http.Client
	retries    uint64
	retryDelay time.Duration
	logger     logger.Logger
}

// rateRow is one provider row. Pointer fields keep missing values missing.
type rateRow struct {
	Currency  *string  `json:"currency"`
	Timestamp *int64   `json:"timestamp"`
	Rate      *float64 `json:"rate"`
}

// ratesResponse represents the response structure of the exchange rate endpoint
type ratesResponse struct {
	Data []rateRow `json:"data"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
}

// currenciesResponse represents the response structure of the currency endpoint
type currenciesResponse struct {
	Data []string `json:"data"`
}

// NewHTTPRateSource creates a provider client
func NewHTTPRateSource(opts HTTPRateSourceOptions, log logger.Logger) (*HTTPRateSource, error) {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid provider base url: %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	return &HTTPRateSource{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		retries:    opts.Retries,
		retryDelay: retryDelay,
		logger:     log,
	}, nil
}

// QueryRates fetches the rows of one currency inside the inclusive window. A 404 from the
// provider means it has no data and yields nil rows.
func (s *HTTPRateSource) QueryRates(ctx context.Context, params entity.QueryParams) ([]entity.RawRow, error) {
	query := url.Values{}
	query.Set("currency", params.Currency)
	query.Set("start", strconv.FormatInt(params.StartMillis, 10))
	query.Set("end", strconv.FormatInt(params.EndMillis, 10))

	var resp ratesResponse
	found, err := s.getJSON(ctx, exchangeRatesPath+"?"+query.Encode(), &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange rates: %w", err)
	}
	if !found {
		return nil, nil
	}

	rows := make([]entity.RawRow, 0, len(resp.Data))
	for _, r := range resp.Data {
		rows = append(rows, entity.RawRow{
			Currency:  r.Currency,
			Timestamp: r.Timestamp,
			Rate:      r.Rate,
		})
	}

	s.logger.Debug("Provider exchange rates received", map[string]interface{}{
		"currency": params.Currency,
		"count":    len(rows),
	})

	return rows, nil
}

// DistinctCurrencies fetches the provider's currency list, dropping blanks
func (s *HTTPRateSource) DistinctCurrencies(ctx context.Context) ([]string, error) {
	var resp currenciesResponse
	found, err := s.getJSON(ctx, currenciesPath, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch currencies: %w", err)
	}

	currencies := []string{}
	if !found {
		return currencies, nil
	}

	for _, c := range resp.Data {
		if strings.TrimSpace(c) != "" {
			currencies = append(currencies, c)
		}
	}

	return currencies, nil
}

// getJSON performs a GET with constant backoff retries on transport errors and 5xx responses.
// It reports false when the provider answered 404.
func (s *HTTPRateSource) getJSON(ctx context.Context, path string, out interface{}) (bool, error) {
	reqURL := s.baseURL + path
	found := true

	b, err := retry.NewConstant(s.retryDelay)
	if err != nil {
		return false, fmt.Errorf("failed to create backoff: %w", err)
	}
	b = retry.WithMaxRetries(s.retries, b)

	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Add("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.logger.Warn("Provider request failed", map[string]interface{}{
				"url":     reqURL,
				"attempt": attempt,
				"error":   err.Error(),
			})
			return retry.RetryableError(fmt.Errorf("failed to execute request: %w", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to read response body: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			found = false
			return nil
		case resp.StatusCode >= http.StatusInternalServerError:
			s.logger.Warn("Provider returned server error", map[string]interface{}{
				"url":     reqURL,
				"attempt": attempt,
				"status":  resp.StatusCode,
			})
			return retry.RetryableError(fmt.Errorf("provider returned status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%w: %d, body: %s", errStatus, resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		found = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return found, nil
}

// Close releases idle provider connections
func (s *HTTPRateSource) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
