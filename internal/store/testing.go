package store

import (
	"fmt"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/AceFire6/flagsmith/model"
)

// MakeTestSQLStore creates a SQLStore backed by a fresh in-memory database
// for use with unit tests.
func MakeTestSQLStore(tb testing.TB, logger log.FieldLogger) *SQLStore {
	dsn := fmt.Sprintf("sqlite3://file:%s?mode=memory&cache=shared", model.NewID())
	sqlStore, err := New(dsn, logger)
	require.NoError(tb, err)

	err = sqlStore.Migrate()
	require.NoError(tb, err)

	return sqlStore
}

// CloseConnection closes underlying database connection.
func CloseConnection(tb testing.TB, sqlStore *SQLStore) {
	err := sqlStore.Close()
	require.NoError(tb, err)
}
