package database

import (
	"testing"

	"booking-app/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsCoverEveryTable(t *testing.T) {
	assert.Len(t, Models(), 14)
}

func TestMigrate_StopsOnExtensionError(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).
		WillReturnError(assert.AnError)

	err := Migrate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pgcrypto")
	require.NoError(t, mock.ExpectationsWereMet())
}
