// Package sourcetest is a conformance suite shared by every RateSource implementation
package sourcetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/repository"
)

// SeedFunc loads records into the backend behind the source under test
type SeedFunc func(t *testing.T, records []entity.RateRecord)

const hour = int64(3_600_000)

// Base is the first timestamp used by the fixtures
const Base = int64(1_704_067_200_000) // 2024-01-01T00:00:00Z

// Fixtures are inserted out of order on purpose
var Fixtures = []entity.RateRecord{
	{Currency: "USD", TimestampMillis: Base + 2*hour, Rate: 17.5},
	{Currency: "USD", TimestampMillis: Base, Rate: 17.5},
	{Currency: "USD", TimestampMillis: Base + hour, Rate: 17.8},
	{Currency: "USD", TimestampMillis: Base + 48*hour, Rate: 17.1},
	{Currency: "EUR", TimestampMillis: Base + hour, Rate: 19.2},
	{Currency: "EURO", TimestampMillis: Base + hour, Rate: 1.0},
	{Currency: "CAD", TimestampMillis: Base - hour, Rate: 12.9},
	{Currency: "USD-X", TimestampMillis: Base + hour, Rate: 3.3},
	{Currency: " ", TimestampMillis: Base, Rate: 1.1},
}

// RunTests runs the suite against source after seeding it with Fixtures
func RunTests(t *testing.T, source repository.RateSource, seed SeedFunc) {
	seed(t, Fixtures)

	t.Run("Range is inclusive and ascending", func(t *testing.T) {
		rows, err := source.QueryRates(context.Background(), entity.QueryParams{
			Currency:    "USD",
			StartMillis: Base,
			EndMillis:   Base + 2*hour,
		})
		require.NoError(t, err)
		require.Len(t, rows, 3)

		wantTimes := []int64{Base, Base + hour, Base + 2*hour}
		wantRates := []float64{17.5, 17.8, 17.5}
		for i, row := range rows {
			require.NotNil(t, row.Currency)
			require.NotNil(t, row.Timestamp)
			require.NotNil(t, row.Rate)
			assert.Equal(t, "USD", *row.Currency)
			assert.Equal(t, wantTimes[i], *row.Timestamp)
			assert.Equal(t, wantRates[i], *row.Rate)
		}
	})

	t.Run("Currency must match exactly", func(t *testing.T) {
		rows, err := source.QueryRates(context.Background(), entity.QueryParams{
			Currency:    "EUR",
			StartMillis: Base - 100*hour,
			EndMillis:   Base + 100*hour,
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 19.2, *rows[0].Rate)
	})

	t.Run("Empty window", func(t *testing.T) {
		rows, err := source.QueryRates(context.Background(), entity.QueryParams{
			Currency:    "USD",
			StartMillis: Base + 3*hour,
			EndMillis:   Base + 47*hour,
		})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("Unknown currency", func(t *testing.T) {
		rows, err := source.QueryRates(context.Background(), entity.QueryParams{
			Currency:    "JPY",
			StartMillis: Base - 100*hour,
			EndMillis:   Base + 100*hour,
		})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("Distinct currencies", func(t *testing.T) {
		currencies, err := source.DistinctCurrencies(context.Background())
		require.NoError(t, err)
		// Blank codes are dropped and "USD-X" sorts after "USD"
		assert.Equal(t, []string{"CAD", "EUR", "EURO", "USD", "USD-X"}, currencies)
	})
}
