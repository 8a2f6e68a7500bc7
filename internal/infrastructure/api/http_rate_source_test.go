package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/db/sourcetest"
)

// fakeProvider serves records the way a remote rate provider does
type fakeProvider struct {
	mu      sync.Mutex
	records []entity.RateRecord
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case exchangeRatesPath:
		q := r.URL.Query()
		start, _ := strconv.ParseInt(q.Get("start"), 10, 64)
		end, _ := strconv.ParseInt(q.Get("end"), 10, 64)

		resp := ratesResponse{Data: []rateRow{}}
		for _, rec := range p.records {
			rec := rec
			if rec.Currency == q.Get("currency") && rec.TimestampMillis >= start && rec.TimestampMillis <= end {
				resp.Data = append(resp.Data, rateRow{Currency: &rec.Currency, Timestamp: &rec.TimestampMillis, Rate: &rec.Rate})
			}
		}
		sort.Slice(resp.Data, func(i, j int) bool { return *resp.Data[i].Timestamp < *resp.Data[j].Timestamp })
		resp.Meta.Count = len(resp.Data)
		json.NewEncoder(w).Encode(resp)

	case currenciesPath:
		seen := map[string]bool{}
		resp := currenciesResponse{Data: []string{}}
		for _, rec := range p.records {
			if !seen[rec.Currency] {
				seen[rec.Currency] = true
				resp.Data = append(resp.Data, rec.Currency)
			}
		}
		sort.Strings(resp.Data)
		json.NewEncoder(w).Encode(resp)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestSource(t *testing.T, handler http.Handler) *HTTPRateSource {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	source, err := NewHTTPRateSource(HTTPRateSourceOptions{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		Retries:    2,
		RetryDelay: time.Millisecond,
	}, nil)
	require.NoError(t, err)

	return source
}

func TestHTTPRateSource_Conformance(t *testing.T) {
	provider := &fakeProvider{}
	source := newTestSource(t, provider)

	sourcetest.RunTests(t, source, func(t *testing.T, records []entity.RateRecord) {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		provider.records = append(provider.records, records...)
	})
}

func TestHTTPRateSource_RetriesServerErrors(t *testing.T) {
	var calls int32
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[{"currency":"USD","timestamp":1000,"rate":17.5}],"meta":{"count":1}}`))
	}))

	rows, err := source.QueryRates(context.Background(), entity.QueryParams{Currency: "USD", StartMillis: 0, EndMillis: 2000})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 17.5, *rows[0].Rate)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPRateSource_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := source.QueryRates(context.Background(), entity.QueryParams{Currency: "USD", StartMillis: 0, EndMillis: 2000})
	assert.Error(t, err)
	// One attempt plus two retries
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPRateSource_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := source.QueryRates(context.Background(), entity.QueryParams{Currency: "USD", StartMillis: 0, EndMillis: 2000})
	assert.ErrorIs(t, err, errStatus)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPRateSource_NotFoundMeansNoData(t *testing.T) {
	source := newTestSource(t, http.NotFoundHandler())

	rows, err := source.QueryRates(context.Background(), entity.QueryParams{Currency: "USD", StartMillis: 0, EndMillis: 2000})
	assert.NoError(t, err)
	assert.Nil(t, rows)

	currencies, err := source.DistinctCurrencies(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, currencies)
}

func TestHTTPRateSource_KeepsMissingFields(t *testing.T) {
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == currenciesPath {
			w.Write([]byte(`{"data":["USD","", "  ","EUR"]}`))
			return
		}
		w.Write([]byte(`{"data":[{"currency":"USD","timestamp":1000,"rate":null},{"currency":"USD","timestamp":2000}]}`))
	}))

	rows, err := source.QueryRates(context.Background(), entity.QueryParams{Currency: "USD", StartMillis: 0, EndMillis: 2000})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Rate)
	assert.Nil(t, rows[1].Rate)
	assert.Equal(t, int64(2000), *rows[1].Timestamp)

	currencies, err := source.DistinctCurrencies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"USD", "EUR"}, currencies)
}

func TestHTTPRateSource_HonorsContext(t *testing.T) {
	source := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.QueryRates(ctx, entity.QueryParams{Currency: "USD", StartMillis: 0, EndMillis: 2000})
	assert.Error(t, err)
}

func TestNewHTTPRateSource_InvalidURL(t *testing.T) {
	_, err := NewHTTPRateSource(HTTPRateSourceOptions{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}
