package booking

import (
	"context"
	"testing"
	"time"

	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/events"
	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	tenantID  = "7b0c3a52-2a4e-4c59-9d5a-0d3f0c1e9a10"
	serviceID = "5f1e2d3c-4b5a-4697-8877-665544332211"
	tierID    = "0a9b8c7d-6e5f-4a3b-9c2d-1e0f2a3b4c5d"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *events.Memory) {
	db, mock := testutil.NewMockDB(t)
	mem := &events.Memory{}
	svc := NewService(db, mem, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 11, 1, 8, 0, 0, 0, time.UTC) }
	return svc, mock, mem
}

func serviceRow(maxPerDay int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "slug", "name", "duration_minutes", "buffer_minutes", "price_cents", "max_per_day", "active",
	}).AddRow(serviceID, tenantID, "massage", "Massage", 60, 0, 9000, maxPerDay, true)
}

func countRow(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func idRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id"}).AddRow(id)
}

func noBookings() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "status"})
}

func timeslotInput() TimeslotBooking {
	price := int64(8500)
	return TimeslotBooking{
		TenantID:          tenantID,
		ServiceID:         serviceID,
		Start:             time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC),
		Location:          time.UTC,
		Customer:          CustomerInput{Email: " Ana@Example.com ", Name: "Ana"},
		TotalCents:        &price,
		PlatformFeeCents:  850,
		Currency:          "eur",
		CheckoutSessionID: "cs_test_123",
	}
}

func expectLock(mock sqlmock.Sqlmock, resource, date string) {
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(LockKey(tenantID, resource, date)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestCreateTimeslotBooking_CommitsUnderLock(t *testing.T) {
	s, mock, mem := newTestService(t)

	mock.ExpectBegin()
	expectLock(mock, serviceID, "2026-11-02")
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE tenant_id = \$1 AND checkout_session_id = \$2`).
		WillReturnRows(noBookings())
	mock.ExpectQuery(`SELECT \* FROM "services"`).WillReturnRows(serviceRow(2))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings" .*start_time <`).WillReturnRows(countRow(0))
	mock.ExpectQuery(`INSERT INTO "customers" .* ON CONFLICT \("tenant_id","email"\) DO UPDATE`).
		WillReturnRows(idRow("cust-1"))
	mock.ExpectQuery(`INSERT INTO "bookings"`).WillReturnRows(idRow("book-1"))
	mock.ExpectCommit()

	b, created, err := s.CreateTimeslotBooking(context.Background(), timeslotInput())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "book-1", b.ID)
	assert.Equal(t, "cust-1", b.CustomerID)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, TypeTimeslot, b.Type)
	assert.Equal(t, "2026-11-02", b.Date)
	// the price captured at checkout wins over the current service price
	assert.Equal(t, int64(8500), b.TotalCents)
	assert.Equal(t, time.Date(2026, 11, 2, 11, 0, 0, 0, time.UTC), *b.EndTime)
	assert.Equal(t, "ana@example.com", b.Customer.Email)

	assert.Equal(t, []string{events.BookingConfirmed}, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTimeslotBooking_CapacityExceeded(t *testing.T) {
	s, mock, mem := newTestService(t)

	mock.ExpectBegin()
	expectLock(mock, serviceID, "2026-11-02")
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).WillReturnRows(noBookings())
	mock.ExpectQuery(`SELECT \* FROM "services"`).WillReturnRows(serviceRow(2))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(2))
	mock.ExpectRollback()

	_, created, err := s.CreateTimeslotBooking(context.Background(), timeslotInput())
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.True(t, IsConflict(err))
	assert.False(t, created)
	assert.Empty(t, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTimeslotBooking_Overlap(t *testing.T) {
	s, mock, _ := newTestService(t)

	mock.ExpectBegin()
	expectLock(mock, serviceID, "2026-11-02")
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).WillReturnRows(noBookings())
	mock.ExpectQuery(`SELECT \* FROM "services"`).WillReturnRows(serviceRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(12))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(1))
	mock.ExpectRollback()

	_, _, err := s.CreateTimeslotBooking(context.Background(), timeslotInput())
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTimeslotBooking_ReplayedSessionReturnsExisting(t *testing.T) {
	s, mock, mem := newTestService(t)

	mock.ExpectBegin()
	expectLock(mock, serviceID, "2026-11-02")
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "status", "total_cents"}).
			AddRow("book-1", tenantID, "CONFIRMED", 8500))
	mock.ExpectCommit()

	b, created, err := s.CreateTimeslotBooking(context.Background(), timeslotInput())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "book-1", b.ID)
	assert.Empty(t, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTimeslotBooking_PendingIsQuiet(t *testing.T) {
	s, mock, mem := newTestService(t)

	in := timeslotInput()
	in.CheckoutSessionID = ""
	in.TotalCents = nil
	in.Status = StatusPending

	mock.ExpectBegin()
	expectLock(mock, serviceID, "2026-11-02")
	mock.ExpectQuery(`SELECT \* FROM "services"`).WillReturnRows(serviceRow(3))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(0))
	mock.ExpectQuery(`INSERT INTO "customers"`).WillReturnRows(idRow("cust-1"))
	mock.ExpectQuery(`INSERT INTO "bookings"`).WillReturnRows(idRow("book-2"))
	mock.ExpectCommit()

	b, created, err := s.CreateTimeslotBooking(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, int64(9000), b.TotalCents)
	assert.Nil(t, b.CheckoutSessionID)
	assert.Empty(t, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTimeslotBooking_InvalidEmailNeverOpensTx(t *testing.T) {
	s, mock, _ := newTestService(t)

	in := timeslotInput()
	in.Customer.Email = "nope"
	_, _, err := s.CreateTimeslotBooking(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDateBooking_DateTaken(t *testing.T) {
	s, mock, _ := newTestService(t)

	mock.ExpectBegin()
	expectLock(mock, dateLockResource, "2026-12-24")
	mock.ExpectQuery(`SELECT \* FROM "tiers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "price_cents", "active"}).
			AddRow(tierID, tenantID, "Gold", 50000, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(1))
	mock.ExpectRollback()

	_, _, err := s.CreateDateBooking(context.Background(), DateBooking{
		TenantID: tenantID,
		TierID:   tierID,
		Date:     "2026-12-24",
		Customer: CustomerInput{Email: "bo@example.com"},
		Currency: "eur",
	})
	assert.ErrorIs(t, err, ErrDateUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDateBooking_ChargesTierDeposit(t *testing.T) {
	s, mock, mem := newTestService(t)

	mock.ExpectBegin()
	expectLock(mock, dateLockResource, "2026-12-24")
	mock.ExpectQuery(`SELECT \* FROM "tiers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "price_cents", "deposit_cents", "active"}).
			AddRow(tierID, tenantID, "Gold", 50000, 10000, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(0))
	mock.ExpectQuery(`INSERT INTO "customers"`).WillReturnRows(idRow("cust-9"))
	mock.ExpectQuery(`INSERT INTO "bookings"`).WillReturnRows(idRow("book-9"))
	mock.ExpectCommit()

	b, created, err := s.CreateDateBooking(context.Background(), DateBooking{
		TenantID: tenantID,
		TierID:   tierID,
		Date:     "2026-12-24",
		Customer: CustomerInput{Email: "bo@example.com", Name: "Bo"},
		Currency: "eur",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, TypeDate, b.Type)
	assert.Equal(t, int64(10000), b.TotalCents)
	assert.Nil(t, b.StartTime)
	assert.Equal(t, []string{events.BookingConfirmed}, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_AlreadyCanceled(t *testing.T) {
	s, mock, mem := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "customer_id", "status"}).
			AddRow("book-1", tenantID, "cust-1", "CANCELED"))
	mock.ExpectQuery(`SELECT \* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow("cust-1", "ana@example.com"))
	mock.ExpectRollback()

	_, err := s.Cancel(context.Background(), tenantID, "book-1", "client asked")
	assert.ErrorIs(t, err, ErrAlreadyCanceled)
	assert.Empty(t, mem.Types())
}

func TestCancel_FreesBooking(t *testing.T) {
	s, mock, mem := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "customer_id", "status"}).
			AddRow("book-1", tenantID, "cust-1", "CONFIRMED"))
	mock.ExpectQuery(`SELECT \* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow("cust-1", "ana@example.com"))
	mock.ExpectExec(`UPDATE "bookings" SET .*"status"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := s.Cancel(context.Background(), tenantID, "book-1", "client asked")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, b.Status)
	assert.Equal(t, "client asked", b.CancelReason)
	require.NotNil(t, b.CanceledAt)
	assert.Equal(t, []string{events.BookingCanceled}, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepPending(t *testing.T) {
	s, mock, _ := newTestService(t)

	mock.ExpectExec(`UPDATE "bookings" SET .* WHERE status = \$\d+ AND created_at < \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.SweepPending(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testTenant() *tenants.Tenant {
	return &tenants.Tenant{ID: tenantID, Timezone: "UTC"}
}

func TestCheckTimeslot_InPast(t *testing.T) {
	s, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "services"`).WillReturnRows(serviceRow(0))

	_, _, err := s.CheckTimeslot(context.Background(), testTenant(), serviceID,
		time.Date(2026, 10, 31, 10, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInPast)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckTimeslot_Blackout(t *testing.T) {
	s, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "services"`).WillReturnRows(serviceRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "blackout_dates"`).
		WithArgs(tenantID, "2026-11-02").
		WillReturnRows(countRow(1))

	_, _, err := s.CheckTimeslot(context.Background(), testTenant(), serviceID,
		time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrBlackoutDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDate_InPastNeverQueries(t *testing.T) {
	s, mock, _ := newTestService(t)

	_, err := s.CheckDate(context.Background(), testTenant(), tierID, "2026-10-30")
	assert.ErrorIs(t, err, ErrInPast)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDate_Taken(t *testing.T) {
	s, mock, _ := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM "tiers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "price_cents", "active"}).
			AddRow(tierID, tenantID, "Gold", 50000, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "blackout_dates"`).WillReturnRows(countRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).WillReturnRows(countRow(1))

	_, err := s.CheckDate(context.Background(), testTenant(), tierID, "2026-12-24")
	assert.ErrorIs(t, err, ErrDateUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func mondayRule() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "service_id", "weekday", "start_time", "end_time"}).
		AddRow("rule-1", tenantID, nil, int(time.Monday), "09:00", "17:00")
}

func dayBookings(starts ...int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "service_id", "type", "status", "date", "start_time", "end_time"})
	statuses := []Status{StatusConfirmed, StatusPending}
	for i, h := range starts {
		start := time.Date(2026, 11, 2, h, 0, 0, 0, time.UTC)
		rows.AddRow("book-"+string(rune('a'+i)), tenantID, serviceID, string(TypeTimeslot),
			string(statuses[i%len(statuses)]), "2026-11-02", start, start.Add(time.Hour))
	}
	return rows
}

func expectCheckTimeslotDay(mock sqlmock.Sqlmock, maxPerDay int, bookings *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT \* FROM "services"`).WillReturnRows(serviceRow(maxPerDay))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "blackout_dates"`).WillReturnRows(countRow(0))
	mock.ExpectQuery(`SELECT \* FROM "availability_rules"`).
		WithArgs(tenantID, int(time.Monday), serviceID).
		WillReturnRows(mondayRule())
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WithArgs(tenantID, serviceID, "2026-11-02", TypeTimeslot, StatusCanceled).
		WillReturnRows(bookings)
}

func TestCheckTimeslot_CapacityReached(t *testing.T) {
	s, mock, _ := newTestService(t)
	// One CONFIRMED and one PENDING booking both count against the cap.
	expectCheckTimeslotDay(mock, 2, dayBookings(9, 10))

	_, _, err := s.CheckTimeslot(context.Background(), testTenant(), serviceID,
		time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckTimeslot_OpenSlot(t *testing.T) {
	s, mock, _ := newTestService(t)
	expectCheckTimeslotDay(mock, 3, dayBookings(9))

	start := time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC)
	svc, slot, err := s.CheckTimeslot(context.Background(), testTenant(), serviceID, start)
	require.NoError(t, err)
	assert.Equal(t, serviceID, svc.ID)
	assert.True(t, start.Equal(slot.Start))
	assert.True(t, start.Add(time.Hour).Equal(slot.End))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckTimeslot_BookedSlotUnavailable(t *testing.T) {
	s, mock, _ := newTestService(t)
	expectCheckTimeslotDay(mock, 0, dayBookings(14))

	_, _, err := s.CheckTimeslot(context.Background(), testTenant(), serviceID,
		time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
