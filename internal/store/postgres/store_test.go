package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openlibrary-harvester/internal/harvest"
)

func TestWorkStore_Append_InsertsBatchInOneTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWorkStoreWithPool(mock, "harvested_works")
	require.NoError(t, err)

	rating := 4.2
	records := []harvest.Record{
		{WorkID: "OL1W", Title: "Dune", Authors: "Frank Herbert", Description: "Spice.", AvgRating: &rating},
		{WorkID: "OL2W", Title: "Hyperion", Authors: "Dan Simmons"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO harvested_works").
		WithArgs("OL1W", "Dune", "Frank Herbert", "Spice.", &rating).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO harvested_works").
		WithArgs("OL2W", "Hyperion", "Dan Simmons", "", (*float64)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Append(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkStore_Append_RollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWorkStoreWithPool(mock, "harvested_works")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO harvested_works").
		WithArgs("OL1W", "", "", "", (*float64)(nil)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.Append(context.Background(), []harvest.Record{{WorkID: "OL1W"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert work OL1W")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkStore_Keys_ReadsStoredIDs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWorkStoreWithPool(mock, "harvested_works")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT work_id FROM harvested_works").
		WillReturnRows(pgxmock.NewRows([]string{"work_id"}).AddRow("OL1W").AddRow("OL2W"))

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"OL1W", "OL2W"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkStore_Exists_ChecksTablePresence(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWorkStoreWithPool(mock, "harvested_works")
	require.NoError(t, err)

	table := "harvested_works"
	mock.ExpectQuery("SELECT to_regclass").
		WithArgs("harvested_works").
		WillReturnRows(pgxmock.NewRows([]string{"to_regclass"}).AddRow(&table))

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT to_regclass").
		WithArgs("harvested_works").
		WillReturnRows(pgxmock.NewRows([]string{"to_regclass"}).AddRow((*string)(nil)))

	exists, err = store.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkStore_EnsureSchema_CreatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWorkStoreWithPool(mock, "harvested_works")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS harvested_works").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWorkStoreWithPool_RejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWorkStoreWithPool(mock, "harvested; DROP TABLE works")
	assert.Error(t, err)
}
