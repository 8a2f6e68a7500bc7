// Package repository defines the storage contracts the application depends on
package repository

import (
	"context"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
)

// RateSource is the external system of record for exchange rates
type RateSource interface {
	// QueryRates returns the rows for params.Currency whose timestamp lies in
	// [params.StartMillis, params.EndMillis], ascending by timestamp. Rows are returned
	// unvalidated; a nil slice with a nil error means the source had nothing to say.
	QueryRates(ctx context.Context, params entity.QueryParams) ([]entity.RawRow, error)

	// DistinctCurrencies returns the distinct currency codes known to the source, ascending
	DistinctCurrencies(ctx context.Context) ([]string, error)
}
