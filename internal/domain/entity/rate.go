package entity

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrInvalidParams is returned when a query cannot be sent to a rate source
	ErrInvalidParams = errors.New("invalid query parameters")

	// ErrSourceUnavailable is returned when a rate source could not be reached
	ErrSourceUnavailable = errors.New("rate source unavailable")

	// ErrMalformedRow is returned for source rows that cannot become a RateRecord
	ErrMalformedRow = errors.New("malformed rate row")
)

// RateRecord represents one exchange rate observation for a currency
type RateRecord struct {
	Currency        string  `json:"currency"`
	TimestampMillis int64   `json:"timestamp"`
	Rate            float64 `json:"rate"`
}

// Time returns the observation time of the record
func (r RateRecord) Time() time.Time {
	return time.UnixMilli(r.TimestampMillis)
}

// RawRow is a row exactly as a rate source returned it. A nil field was absent or NULL.
type RawRow struct {
	Currency  *string
	Timestamp *int64
	Rate      *float64
}

// NewRawRow builds a fully populated row
func NewRawRow(currency string, timestamp int64, rate float64) RawRow {
	return RawRow{Currency: &currency, Timestamp: &timestamp, Rate: &rate}
}

// Record converts the row, rejecting missing fields, blank currencies and non-finite rates
func (r RawRow) Record() (RateRecord, error) {
	switch {
	case r.Currency == nil:
		return RateRecord{}, fmt.Errorf("%w: currency missing", ErrMalformedRow)
	case r.Timestamp == nil:
		return RateRecord{}, fmt.Errorf("%w: timestamp missing", ErrMalformedRow)
	case r.Rate == nil:
		return RateRecord{}, fmt.Errorf("%w: rate missing", ErrMalformedRow)
	case strings.TrimSpace(*r.Currency) == "":
		return RateRecord{}, fmt.Errorf("%w: blank currency at %d", ErrMalformedRow, *r.Timestamp)
	case math.IsNaN(*r.Rate) || math.IsInf(*r.Rate, 0):
		return RateRecord{}, fmt.Errorf("%w: non-finite rate at %d", ErrMalformedRow, *r.Timestamp)
	}

	return RateRecord{
		Currency:        *r.Currency,
		TimestampMillis: *r.Timestamp,
		Rate:            *r.Rate,
	}, nil
}

// QueryParams selects the records of one currency inside an inclusive time window
type QueryParams struct {
	Currency    string `json:"currency"`
	StartMillis int64  `json:"start_millis"`
	EndMillis   int64  `json:"end_millis"`
}

// Validate ensures the parameters describe a usable query
func (p QueryParams) Validate() error {
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidParams)
	}

	if p.StartMillis > p.EndMillis {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidParams, p.StartMillis, p.EndMillis)
	}

	return nil
}

// Contains reports whether a timestamp falls inside the window, bounds included
func (p QueryParams) Contains(millis int64) bool {
	return millis >= p.StartMillis && millis <= p.EndMillis
}

// NewDayRangeParams builds parameters from two calendar dates. The start is truncated to the
// beginning of its day and the end is extended to the last millisecond of its day, both in loc.
func NewDayRangeParams(currency string, start, end time.Time, loc *time.Location) QueryParams {
	if loc == nil {
		loc = time.Local
	}

	start = start.In(loc)
	end = end.In(loc)

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	dayEnd := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(999*time.Millisecond), loc)

	return QueryParams{
		Currency:    currency,
		StartMillis: dayStart.UnixMilli(),
		EndMillis:   dayEnd.UnixMilli(),
	}
}
