// Package sqldb persists bar history in SQLite or PostgreSQL and serves it
// back as a bar source for the recompute engine.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tradesignal/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNoBars is returned when the store holds no bars for a symbol.
var ErrNoBars = errors.New("no bars stored for symbol")

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol TEXT             NOT NULL,
	ts     BIGINT           NOT NULL,
	open   DOUBLE PRECISION NOT NULL,
	high   DOUBLE PRECISION NOT NULL,
	low    DOUBLE PRECISION NOT NULL,
	close  DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (symbol, ts)
)`

const upsertBar = `
INSERT INTO bars (symbol, ts, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (symbol, ts) DO UPDATE SET
	open = excluded.open,
	high = excluded.high,
	low = excluded.low,
	close = excluded.close,
	volume = excluded.volume`

// Store reads and writes bars through sqlx. Queries are written with "?"
// placeholders and rebound for the active driver.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to driver ("sqlite3" or "postgres") at dsn and pings it.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite3":
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldb ping %s: %w", driver, err)
	}

	log.Printf("[sqldb] connected driver=%s", driver)
	return &Store{db: db, driver: driver}, nil
}

// Migrate creates the bars table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqldb migrate: %w", err)
	}
	return nil
}

// Bars returns the newest limit bars for symbol, oldest first.
// A non-positive limit returns the full history.
func (s *Store) Bars(ctx context.Context, symbol string, limit int) (model.Series, error) {
	var (
		query string
		args  []any
	)
	if limit > 0 {
		query = `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM bars WHERE symbol = ?
			ORDER BY ts DESC LIMIT ?
		) recent ORDER BY ts ASC`
		args = []any{symbol, limit}
	} else {
		query = `
		SELECT ts, open, high, low, close, volume
		FROM bars WHERE symbol = ?
		ORDER BY ts ASC`
		args = []any{symbol}
	}

	var bars []model.Bar
	if err := s.db.SelectContext(ctx, &bars, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqldb select bars %s: %w", symbol, err)
	}
	return model.Series(bars), nil
}

// Quote derives a quote from the two most recent bars.
func (s *Store) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	bars, err := s.Bars(ctx, symbol, 2)
	if err != nil {
		return model.Quote{}, err
	}
	q, ok := model.QuoteFromSeries(symbol, bars)
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: %s", ErrNoBars, symbol)
	}
	return q, nil
}

// WriteBars upserts bars for symbol in a single transaction.
func (s *Store) WriteBars(ctx context.Context, symbol string, bars model.Series) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldb begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertBar))
	if err != nil {
		return fmt.Errorf("sqldb prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.TS, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("sqldb upsert %s@%d: %w", symbol, b.TS, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqldb commit: %w", err)
	}

	log.Printf("[sqldb] wrote %d bars for %s in %s", len(bars), symbol, time.Since(start).Round(time.Microsecond))
	return nil
}

// Symbols lists every symbol with stored bars.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("sqldb select symbols: %w", err)
	}
	return out, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string { return s.driver }

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
