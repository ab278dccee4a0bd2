// Package archive persists emitted alert requests for later inspection.
// Archiving is a supplemented feature, not required for the screener's
// signal path to function: a nil or no-op Archive is always valid.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pricepulse/internal/signal"
)

// PostgresArchive writes every alert request to the alerts table.
type PostgresArchive struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresArchive opens a connection pool against dsn and verifies
// it with a ping before returning.
func NewPostgresArchive(dsn string, timeout time.Duration) (*PostgresArchive, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresArchive{db: db, timeout: timeout}, nil
}

// newPostgresArchiveFromDB wraps an already-open handle, letting tests
// inject a sqlmock-backed *sqlx.DB without a real connection.
func newPostgresArchiveFromDB(db *sqlx.DB, timeout time.Duration) *PostgresArchive {
	return &PostgresArchive{db: db, timeout: timeout}
}

var _ signal.Archive = (*PostgresArchive)(nil)

// Record inserts one row per alert. A unique-violation on the
// (market_key, period_seconds, created_at) composite is treated as a
// harmless duplicate rather than an error.
func (a *PostgresArchive) Record(ctx context.Context, req signal.AlertRequest) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	query := `
		INSERT INTO alerts (market_key, exchange, symbol, period_seconds, percent, is_uptrend, min_price, max_price, signals_24h, is_update, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`

	_, err := a.db.ExecContext(ctx, query,
		req.MarketKey, req.Exchange, req.Symbol, int64(req.Period.Seconds()),
		req.Percent, req.IsUptrend, req.MinPrice, req.MaxPrice, req.Signals24h, req.Update)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			log.Debug().Str("market", req.MarketKey).Msg("duplicate alert record ignored")
			return nil
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (a *PostgresArchive) Close() error {
	return a.db.Close()
}

// NoopArchive discards every record. Used when ARCHIVE_DSN is unset.
type NoopArchive struct{}

var _ signal.Archive = NoopArchive{}

// Record does nothing and always succeeds.
func (NoopArchive) Record(ctx context.Context, req signal.AlertRequest) error {
	return nil
}
