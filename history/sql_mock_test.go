package history

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/fusionflow/types"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	return NewSQLStore(db, 10, nil), mock
}

func TestSQLStore_RecordOutcomesSQL(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "strategy_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectCommit()

	err := store.RecordOutcomes(context.Background(), "inv-1", []types.StrategyOutcome{
		outcome(types.StrategyVector, true),
		outcome(types.StrategyLexical, false),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_SuccessRateSQL(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT "success" FROM "strategy_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"success"}).
			AddRow(true).AddRow(true).AddRow(false))

	rate, err := store.SuccessRate(context.Background(), types.StrategyVector)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, rate, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_QueryErrorWrapped(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT "success" FROM "strategy_records"`).
		WillReturnError(errors.New("connection reset"))

	_, err := store.SuccessRate(context.Background(), types.StrategyVector)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query window")
}
