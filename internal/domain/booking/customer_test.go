package booking

import (
	"context"
	"testing"
	"time"

	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestCustomerInput_Validate(t *testing.T) {
	assert.NoError(t, CustomerInput{Email: " Ana@Example.com"}.Validate())
	assert.ErrorIs(t, CustomerInput{Email: ""}.Validate(), ErrInvalidEmail)
	assert.ErrorIs(t, CustomerInput{Email: "not-an-email"}.Validate(), ErrInvalidEmail)
	assert.ErrorIs(t, CustomerInput{Email: "Ana <ana@example.com>"}.Validate(), ErrInvalidEmail)
}

func TestUpsertCustomer_ReturningCustomerKeepsStoredFields(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	created := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO "customers" .*ON CONFLICT .*DO UPDATE SET "updated_at"=.* RETURNING \*`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "email", "name", "phone", "created_at", "updated_at"}).
			AddRow("cust-1", tenantID, "ana@example.com", "Ana Silva", "+351 900 000 000", created, created))

	c, err := upsertCustomer(context.Background(), db, tenantID, CustomerInput{Email: " Ana@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", c.ID)
	assert.Equal(t, "Ana Silva", c.Name)
	assert.Equal(t, "+351 900 000 000", c.Phone)
	assert.True(t, created.Equal(c.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
