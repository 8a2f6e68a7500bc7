package db

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/db/sourcetest"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

func newBadgerSource(t *testing.T) *BadgerRateSource {
	t.Helper()

	badgerOpts := badger.DefaultOptions(t.TempDir())
	badgerOpts.Logger = nil
	badgerOpts.SyncWrites = false

	badgerDB, err := badger.Open(badgerOpts)
	require.NoError(t, err)
	t.Cleanup(func() { badgerDB.Close() })

	return NewBadgerRateSource(badgerDB, logger.NewJSONLogger(nil, logger.ErrorLevel))
}

func TestBadgerRateSource(t *testing.T) {
	source := newBadgerSource(t)

	sourcetest.RunTests(t, source, func(t *testing.T, records []entity.RateRecord) {
		for _, r := range records {
			require.NoError(t, source.PutRate(context.Background(), r))
		}
	})
}

func TestBadgerRateSourceNegativeTimestamps(t *testing.T) {
	source := newBadgerSource(t)
	ctx := context.Background()

	for _, ts := range []int64{5, -5, 0, -3_600_000} {
		require.NoError(t, source.PutRate(ctx, entity.RateRecord{Currency: "USD", TimestampMillis: ts, Rate: 1}))
	}

	rows, err := source.QueryRates(ctx, entity.QueryParams{Currency: "USD", StartMillis: -10, EndMillis: 10})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var got []int64
	for _, r := range rows {
		got = append(got, *r.Timestamp)
	}
	assert.Equal(t, []int64{-5, 0, 5}, got)
}

func TestBadgerRateSourceCorruptEntry(t *testing.T) {
	source := newBadgerSource(t)
	ctx := context.Background()

	require.NoError(t, source.PutRate(ctx, entity.RateRecord{Currency: "USD", TimestampMillis: 1000, Rate: 17.5}))
	require.NoError(t, source.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rateKey("USD", 2000), []byte("{not json"))
	}))
	require.NoError(t, source.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rateKey("USD", 3000), []byte(`{"currency":"USD","timestamp":3000}`))
	}))

	rows, err := source.QueryRates(ctx, entity.QueryParams{Currency: "USD", StartMillis: 0, EndMillis: 5000})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.NotNil(t, rows[0].Rate)
	assert.Nil(t, rows[1].Currency, "unreadable entries come back empty")
	assert.Nil(t, rows[2].Rate, "missing fields stay absent")
}

func TestBadgerRateSourceRejectsBadCurrency(t *testing.T) {
	source := newBadgerSource(t)

	err := source.PutRate(context.Background(), entity.RateRecord{Currency: "US/D", TimestampMillis: 1, Rate: 1})
	assert.Error(t, err)

	err = source.PutRate(context.Background(), entity.RateRecord{Currency: "", TimestampMillis: 1, Rate: 1})
	assert.Error(t, err)
}

func TestTimestampEncodingRoundTrip(t *testing.T) {
	for _, ts := range []int64{0, 1, -1, 1_704_067_200_000, -1_704_067_200_000} {
		assert.Equal(t, ts, decodeTimestamp(encodeTimestamp(ts)))
	}
}

func TestBadgerRateSourceDistinctCurrenciesOrder(t *testing.T) {
	source := newBadgerSource(t)
	ctx := context.Background()

	for _, currency := range []string{"USD", "USD-X", " ", "\t"} {
		require.NoError(t, source.PutRate(ctx, entity.RateRecord{Currency: currency, TimestampMillis: 1, Rate: 1}))
	}

	currencies, err := source.DistinctCurrencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"USD", "USD-X"}, currencies)
}
