// Package service coordinates rate sources and the series builder
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/cases"

	"github.com/damon-houk/exchange-rate-chart/internal/application/series"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/repository"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/cache"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/middleware"
)

const (
	// DefaultBaseCurrency is the currency every rate is quoted against
	DefaultBaseCurrency = "MXN"
	// DefaultCurrency is charted when no currency is requested and none are listed
	DefaultCurrency = "USD"
	// DefaultWindow is the span charted when no start date is requested
	DefaultWindow = 7 * 24 * time.Hour

	currenciesCacheKey = "currencies"
)

// ChartOptions configures a ChartService
type ChartOptions struct {
	BaseCurrency    string
	DefaultCurrency string
	DefaultWindow   time.Duration
	Location        *time.Location
	// Now overrides the clock, for tests
	Now func() time.Time
}

// ChartService builds chart series from an injected rate source
type ChartService struct {
	source repository.RateSource
	cache  cache.ListCache
	opts   ChartOptions
	logger logger.Logger
}

// NewChartService creates a chart service. listCache may be nil to disable currency caching.
func NewChartService(source repository.RateSource, listCache cache.ListCache, opts ChartOptions, log logger.Logger) *ChartService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = DefaultBaseCurrency
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = DefaultCurrency
	}
	if opts.DefaultWindow <= 0 {
		opts.DefaultWindow = DefaultWindow
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &ChartService{
		source: source,
		cache:  listCache,
		opts:   opts,
		logger: log,
	}
}

// Location returns the time zone calendar dates are interpreted in
func (s *ChartService) Location() *time.Location {
	return s.opts.Location
}

// Series fetches the records selected by params and derives the chart series.
// An empty result is a valid series without points or axes.
func (s *ChartService) Series(ctx context.Context, params entity.QueryParams) (*entity.Series, error) {
	requestID := middleware.GetRequestID(ctx)

	if err := params.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.source.QueryRates(ctx, params)
	if err != nil {
		s.logger.Error("Failed to query exchange rates", map[string]interface{}{
			"request_id": requestID,
			"currency":   params.Currency,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", entity.ErrSourceUnavailable, err)
	}

	s.logger.Debug("Exchange rate rows fetched", map[string]interface{}{
		"request_id": requestID,
		"currency":   params.Currency,
		"count":      len(rows),
	})

	records, dropErr := CleanRows(rows)
	if dropErr != nil {
		var merr *multierror.Error
		dropped := 1
		if errors.As(dropErr, &merr) {
			dropped = len(merr.Errors)
		}
		s.logger.Warn("Dropped malformed exchange rate rows", map[string]interface{}{
			"request_id": requestID,
			"currency":   params.Currency,
			"dropped":    dropped,
			"error":      dropErr.Error(),
		})
	}

	points := series.Build(records)
	for i, p := range points {
		s.logger.Debug("Plot point", map[string]interface{}{
			"request_id": requestID,
			"index":      i,
			"x":          p.X,
			"y":          p.Y,
		})
	}

	xAxis, yAxis := series.Bounds(points)

	return &entity.Series{
		Params: params,
		Label:  series.Label(params.Currency, s.opts.BaseCurrency),
		Points: points,
		XAxis:  xAxis,
		YAxis:  yAxis,
	}, nil
}

// Currencies lists the distinct currencies of the source, served from the cache when fresh
func (s *ChartService) Currencies(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, currenciesCacheKey); ok {
			return cached, nil
		}
	}

	return s.RefreshCurrencies(ctx)
}

// RefreshCurrencies reads the currency list from the source and replaces the cached copy.
// A failed read drops the cached copy so a vanished source is not listed from memory.
func (s *ChartService) RefreshCurrencies(ctx context.Context) ([]string, error) {
	currencies, err := s.source.DistinctCurrencies(ctx)
	if err != nil {
		if s.cache != nil {
			s.cache.Invalidate(ctx, currenciesCacheKey)
		}
		s.logger.Error("Failed to list currencies", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", entity.ErrSourceUnavailable, err)
	}

	if s.cache != nil {
		s.cache.Put(ctx, currenciesCacheKey, currencies)
	}

	return currencies, nil
}

// SearchCurrencies lists the currencies containing query, ignoring case
func (s *ChartService) SearchCurrencies(ctx context.Context, query string) ([]string, error) {
	currencies, err := s.Currencies(ctx)
	if err != nil {
		return nil, err
	}

	return FilterCurrencies(currencies, query), nil
}

// FilterCurrencies keeps the currencies that contain query under Unicode case folding.
// A blank query keeps everything.
func FilterCurrencies(currencies []string, query string) []string {
	query = strings.TrimSpace(query)
	result := make([]string, 0, len(currencies))

	if query == "" {
		return append(result, currencies...)
	}

	fold := cases.Fold()
	needle := fold.String(query)
	for _, c := range currencies {
		if strings.Contains(fold.String(c), needle) {
			result = append(result, c)
		}
	}

	return result
}

// ResolveParams fills in defaults and turns calendar dates into a query window.
// A blank currency becomes the first listed currency, or the configured default when none
// can be listed. A nil end means today and a nil start means end minus the default window.
func (s *ChartService) ResolveParams(ctx context.Context, currency string, start, end *time.Time) (entity.QueryParams, error) {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = s.defaultCurrency(ctx)
	}

	endDate := s.opts.Now()
	if end != nil {
		endDate = *end
	}

	startDate := endDate.Add(-s.opts.DefaultWindow)
	if start != nil {
		startDate = *start
	}

	params := entity.NewDayRangeParams(currency, startDate, endDate, s.opts.Location)
	if err := params.Validate(); err != nil {
		return entity.QueryParams{}, err
	}

	return params, nil
}

func (s *ChartService) defaultCurrency(ctx context.Context) string {
	currencies, err := s.Currencies(ctx)
	if err != nil {
		return s.opts.DefaultCurrency
	}

	for _, c := range currencies {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}

	return s.opts.DefaultCurrency
}
