package db

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/repository"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

const (
	rateKeyPrefix = "rate/"
	keySeparator  = '/'
)

var _ repository.RateSource = (*BadgerRateSource)(nil)

// storedRate is the JSON value of one rate entry. Pointer fields keep absent values absent.
type storedRate struct {
	Currency  *string  `json:"currency"`
	Timestamp *int64   `json:"timestamp"`
	Rate      *float64 `json:"rate"`
}

// BadgerRateSource serves exchange rates from a BadgerDB directory. Keys are
// rate/<currency>/<8 byte timestamp> so that a currency's entries iterate in time order.
type BadgerRateSource struct {
	db     *badger.DB
	logger logger.Logger
}

// NewBadgerRateSource creates a rate source over an open BadgerDB
func NewBadgerRateSource(db *badger.DB, log logger.Logger) *BadgerRateSource {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &BadgerRateSource{db: db, logger: log}
}

func currencyPrefix(currency string) []byte {
	return append([]byte(rateKeyPrefix+currency), keySeparator)
}

// encodeTimestamp flips the sign bit so that negative timestamps sort before positive ones
func encodeTimestamp(millis int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(millis)^(1<<63))
	return b
}

func decodeTimestamp(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func rateKey(currency string, millis int64) []byte {
	return append(currencyPrefix(currency), encodeTimestamp(millis)...)
}

// PutRate stores one record. Only used to seed local stores and fixtures. Blank codes are
// stored as the provider would hold them; DistinctCurrencies never lists them.
func (s *BadgerRateSource) PutRate(ctx context.Context, record entity.RateRecord) error {
	if record.Currency == "" || strings.ContainsRune(record.Currency, keySeparator) {
		return fmt.Errorf("invalid currency code: %q", record.Currency)
	}

	data, err := json.Marshal(storedRate{
		Currency:  &record.Currency,
		Timestamp: &record.TimestampMillis,
		Rate:      &record.Rate,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal exchange rate: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rateKey(record.Currency, record.TimestampMillis), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store exchange rate: %w", err)
	}

	return nil
}

// QueryRates returns the entries of one currency inside the inclusive window, oldest first
func (s *BadgerRateSource) QueryRates(ctx context.Context, params entity.QueryParams) ([]entity.RawRow, error) {
	prefix := currencyPrefix(params.Currency)
	endKey := rateKey(params.Currency, params.EndMillis)

	var rows []entity.RawRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(rateKey(params.Currency, params.StartMillis)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			if bytes.Compare(item.Key(), endKey) > 0 {
				break
			}

			var stored storedRate
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				s.logger.Warn("Unreadable exchange rate entry", map[string]interface{}{
					"currency":  params.Currency,
					"timestamp": decodeTimestamp(item.Key()[len(prefix):]),
					"error":     err.Error(),
				})
			}

			rows = append(rows, entity.RawRow{
				Currency:  stored.Currency,
				Timestamp: stored.Timestamp,
				Rate:      stored.Rate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange rates: %w", err)
	}

	s.logger.Debug("Exchange rate entries read", map[string]interface{}{
		"currency": params.Currency,
		"start":    params.StartMillis,
		"end":      params.EndMillis,
		"count":    len(rows),
	})

	return rows, nil
}

// DistinctCurrencies lists every non-blank currency that has at least one entry, ascending.
// Key order is not string order ('-' sorts before the separator), so the result is sorted.
func (s *BadgerRateSource) DistinctCurrencies(ctx context.Context) ([]string, error) {
	currencies := []string{}
	prefix := []byte(rateKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); {
			rest := it.Item().Key()[len(prefix):]
			idx := bytes.IndexByte(rest, keySeparator)
			if idx <= 0 {
				return errors.New("malformed rate key")
			}

			currency := string(rest[:idx])
			if strings.TrimSpace(currency) != "" {
				currencies = append(currencies, currency)
			}

			// Jump past every key of this currency
			it.Seek(append([]byte(rateKeyPrefix+currency), keySeparator+1))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}

	sort.Strings(currencies)
	return currencies, nil
}
