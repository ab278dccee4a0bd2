package archive

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pricepulse/internal/signal"
)

func TestPostgresArchive_RecordInsertsRow(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	a := newPostgresArchiveFromDB(sqlxDB, time.Second)

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs("bybit_BTCUSDT", "bybit", "BTCUSDT", int64(60), 2.5, true, 100.0, 102.5, 3, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = a.Record(context.Background(), signal.AlertRequest{
		MarketKey:  "bybit_BTCUSDT",
		Exchange:   "bybit",
		Symbol:     "BTCUSDT",
		Period:     60 * time.Second,
		Percent:    2.5,
		IsUptrend:  true,
		MinPrice:   100,
		MaxPrice:   102.5,
		Signals24h: 3,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_RecordIgnoresDuplicateViolation(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	a := newPostgresArchiveFromDB(sqlxDB, time.Second)

	mock.ExpectExec("INSERT INTO alerts").
		WillReturnError(&pq.Error{Code: "23505"})

	err = a.Record(context.Background(), signal.AlertRequest{MarketKey: "bybit_BTCUSDT"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_RecordPropagatesOtherErrors(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	a := newPostgresArchiveFromDB(sqlxDB, time.Second)

	mock.ExpectExec("INSERT INTO alerts").WillReturnError(assert.AnError)

	err = a.Record(context.Background(), signal.AlertRequest{MarketKey: "bybit_BTCUSDT"})
	assert.Error(t, err)
}

func TestNoopArchive_NeverFails(t *testing.T) {
	var a NoopArchive
	assert.NoError(t, a.Record(context.Background(), signal.AlertRequest{}))
}
