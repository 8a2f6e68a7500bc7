package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/domain/repository"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

const (
	// DriverSQLite is the database/sql name of the embedded SQLite driver
	DriverSQLite = "sqlite"
	// DriverPostgres is the database/sql name of the pgx driver
	DriverPostgres = "pgx"

	tableName = "exchange_rates"
)

var _ repository.RateSource = (*SQLRateSource)(nil)

// rateModel mirrors one row of the provider's exchange_rates table. Every column is
// nullable so that incomplete rows reach the caller instead of failing the scan.
type rateModel struct {
	Currency  sql.NullString  `db:"currency"`
	Timestamp sql.NullInt64   `db:"timestamp"`
	Rate      sql.NullFloat64 `db:"rate"`
}

func (m *rateModel) toRawRow() entity.RawRow {
	var row entity.RawRow
	if m.Currency.Valid {
		v := m.Currency.String
		row.Currency = &v
	}
	if m.Timestamp.Valid {
		v := m.Timestamp.Int64
		row.Timestamp = &v
	}
	if m.Rate.Valid {
		v := m.Rate.Float64
		row.Rate = &v
	}
	return row
}

// SQLRateSource reads exchange rates from a SQL table shaped like the provider's
// exchange_rates(currency, timestamp, rate) collection
type SQLRateSource struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewSQLRateSource wraps an open database handle
func NewSQLRateSource(db *sqlx.DB, log logger.Logger) *SQLRateSource {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &SQLRateSource{db: db, logger: log}
}

// OpenSQLRateSource opens a database with the given driver and verifies the connection
func OpenSQLRateSource(ctx context.Context, driver, dsn string, log logger.Logger) (*SQLRateSource, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY on the embedded file
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(60 * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	return NewSQLRateSource(db, log), nil
}

// EnsureSchema creates the exchange_rates table when it does not exist yet. It is meant for
// local databases and fixtures; a provider-owned database already has it.
func (s *SQLRateSource) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			currency  TEXT,
			timestamp BIGINT,
			rate      DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchange_rates_currency_ts ON ` + tableName + ` (currency, timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// InsertRate writes one record. Only used to seed local databases and fixtures.
func (s *SQLRateSource) InsertRate(ctx context.Context, record entity.RateRecord) error {
	query := s.db.Rebind(`INSERT INTO ` + tableName + ` (currency, timestamp, rate) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, record.Currency, record.TimestampMillis, record.Rate); err != nil {
		return fmt.Errorf("failed to insert exchange rate: %w", err)
	}
	return nil
}

// QueryRates returns the rows of one currency inside the inclusive window, oldest first
func (s *SQLRateSource) QueryRates(ctx context.Context, params entity.QueryParams) ([]entity.RawRow, error) {
	query := s.db.Rebind(`SELECT currency, timestamp, rate FROM ` + tableName + `
		WHERE currency = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC`)

	var models []*rateModel
	if err := s.db.SelectContext(ctx, &models, query, params.Currency, params.StartMillis, params.EndMillis); err != nil {
		return nil, fmt.Errorf("failed to query exchange rates: %w", err)
	}

	s.logger.Debug("Exchange rate rows read", map[string]interface{}{
		"currency": params.Currency,
		"start":    params.StartMillis,
		"end":      params.EndMillis,
		"count":    len(models),
	})

	rows := make([]entity.RawRow, 0, len(models))
	for _, m := range models {
		rows = append(rows, m.toRawRow())
	}
	return rows, nil
}

// DistinctCurrencies lists every non-blank currency code, ascending
func (s *SQLRateSource) DistinctCurrencies(ctx context.Context) ([]string, error) {
	var codes []sql.NullString
	err := s.db.SelectContext(ctx, &codes,
		`SELECT DISTINCT currency FROM `+tableName+` WHERE currency IS NOT NULL ORDER BY currency ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}

	currencies := make([]string, 0, len(codes))
	for _, c := range codes {
		if !c.Valid || strings.TrimSpace(c.String) == "" {
			continue
		}
		currencies = append(currencies, c.String)
	}
	return currencies, nil
}

// Close closes the underlying database
func (s *SQLRateSource) Close() error {
	return s.db.Close()
}
