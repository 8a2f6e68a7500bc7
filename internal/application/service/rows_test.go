package service

import (
	"errors"
	"math"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
)

func TestCleanRows(t *testing.T) {
	t.Run("All rows valid", func(t *testing.T) {
		rows := []entity.RawRow{
			entity.NewRawRow("USD", 2000, 17.8),
			entity.NewRawRow("USD", 1000, 17.5),
		}

		records, err := CleanRows(rows)
		assert.NoError(t, err)
		assert.Equal(t, []entity.RateRecord{
			{Currency: "USD", TimestampMillis: 2000, Rate: 17.8},
			{Currency: "USD", TimestampMillis: 1000, Rate: 17.5},
		}, records)
	})

	t.Run("Malformed rows are dropped", func(t *testing.T) {
		good := entity.NewRawRow("USD", 1000, 17.5)
		missingRate := entity.NewRawRow("USD", 2000, 0)
		missingRate.Rate = nil
		missingTimestamp := entity.NewRawRow("USD", 0, 17.5)
		missingTimestamp.Timestamp = nil
		missingCurrency := entity.NewRawRow("", 3000, 17.5)
		missingCurrency.Currency = nil

		rows := []entity.RawRow{
			good,
			missingRate,
			missingTimestamp,
			missingCurrency,
			entity.NewRawRow("  ", 4000, 17.5),
			entity.NewRawRow("USD", 5000, math.NaN()),
			entity.NewRawRow("USD", 6000, math.Inf(1)),
		}

		records, err := CleanRows(rows)
		require.Error(t, err)
		assert.True(t, errors.Is(err, entity.ErrMalformedRow))
		assert.Equal(t, []entity.RateRecord{{Currency: "USD", TimestampMillis: 1000, Rate: 17.5}}, records)

		var merr *multierror.Error
		require.True(t, errors.As(err, &merr))
		assert.Len(t, merr.Errors, 6)
	})

	t.Run("No rows", func(t *testing.T) {
		records, err := CleanRows(nil)
		assert.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})
}
