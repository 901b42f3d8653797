package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/events"
	stripeinfra "booking-app/internal/infra/stripe"
	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	tenantID  = "7b0c3a52-2a4e-4c59-9d5a-0d3f0c1e9a10"
	serviceID = "5f1e2d3c-4b5a-4697-8877-665544332211"
	tierID    = "0a9b8c7d-6e5f-4a3b-9c2d-1e0f2a3b4c5d"
)

type fakeGateway struct {
	sessions []stripeinfra.CheckoutRequest
	refunds  []string
	err      error
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, req stripeinfra.CheckoutRequest) (*stripeinfra.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions = append(f.sessions, req)
	return &stripeinfra.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeGateway) Refund(_ context.Context, intent, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.refunds = append(f.refunds, intent)
	return nil
}

func newPayments(t *testing.T) (*Payments, sqlmock.Sqlmock, *fakeGateway, *events.Memory) {
	db, mock := testutil.NewMockDB(t)
	mem := &events.Memory{}
	gw := &fakeGateway{}
	bookings := booking.NewService(db, mem, zap.NewNop())
	return NewPayments(db, bookings, gw, mem, zap.NewNop(), "https://app.example.com"), mock, gw, mem
}

func payingTenant() *tenants.Tenant {
	acct := "acct_123"
	return &tenants.Tenant{
		ID:                tenantID,
		Slug:              "studio-nine",
		Status:            tenants.StatusActive,
		Timezone:          "UTC",
		Currency:          "EUR",
		CommissionPercent: decimal.NewFromInt(10),
		StripeAccountID:   &acct,
		ChargesEnabled:    true,
	}
}

func tenantRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "slug", "status", "timezone", "currency", "commission_percent"}).
		AddRow(tenantID, "studio-nine", "ACTIVE", "UTC", "eur", "10")
}

func timeslotMetadata() map[string]string {
	return map[string]string{
		"tenant_id":      tenantID,
		"payment_id":     "pay-1",
		"kind":           "TIMESLOT",
		"item_id":        serviceID,
		"start":          "2030-03-04T10:00:00Z",
		"customer_email": "ana@example.com",
		"customer_name":  "Ana",
		"total_cents":    "9000",
		"fee_cents":      "900",
	}
}

func TestStartCheckout_RequiresChargesEnabled(t *testing.T) {
	p, _, gw, _ := newPayments(t)
	tn := payingTenant()
	tn.ChargesEnabled = false

	_, err := p.StartCheckout(context.Background(), tn, CheckoutInput{Kind: booking.TypeDate})
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
	assert.Empty(t, gw.sessions)
}

func TestStartCheckout_DateTierWithFee(t *testing.T) {
	p, mock, gw, _ := newPayments(t)

	mock.ExpectQuery(`SELECT \* FROM "tiers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "price_cents", "active"}).
			AddRow(tierID, tenantID, "Gold", 25000, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "blackout_dates"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pay-1"))

	res, err := p.StartCheckout(context.Background(), payingTenant(), CheckoutInput{
		Kind:     booking.TypeDate,
		ItemID:   tierID,
		Date:     "2030-06-01",
		Customer: booking.CustomerInput{Email: "Ana@Example.com", Name: "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), res.AmountCents)
	assert.Equal(t, int64(2500), res.ApplicationFeeCents)
	assert.Equal(t, "eur", res.Currency)

	require.Len(t, gw.sessions, 1)
	req := gw.sessions[0]
	assert.Equal(t, "acct_123", req.ConnectedAccountID)
	assert.Equal(t, "ana@example.com", req.Metadata["customer_email"])
	assert.Equal(t, "2030-06-01", req.Metadata["date"])
	assert.Equal(t, res.PaymentID, req.IdempotencyKey)
	assert.Contains(t, req.SuccessURL, "/t/studio-nine/")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartCheckout_DateTaken(t *testing.T) {
	p, mock, gw, _ := newPayments(t)

	mock.ExpectQuery(`SELECT \* FROM "tiers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "price_cents", "active"}).
			AddRow(tierID, tenantID, "Gold", 25000, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "blackout_dates"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := p.StartCheckout(context.Background(), payingTenant(), CheckoutInput{
		Kind:     booking.TypeDate,
		ItemID:   tierID,
		Date:     "2030-06-01",
		Customer: booking.CustomerInput{Email: "ana@example.com"},
	})
	assert.ErrorIs(t, err, booking.ErrDateUnavailable)
	assert.Empty(t, gw.sessions)
}

func TestCompleteCheckout_RefundsWhenCapacityGone(t *testing.T) {
	p, mock, gw, mem := newPayments(t)

	mock.ExpectQuery(`SELECT \* FROM "tenants"`).WillReturnRows(tenantRow())
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "duration_minutes", "price_cents", "max_per_day", "active"}).
			AddRow(serviceID, tenantID, 60, 9000, 1, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()
	mock.ExpectExec(`UPDATE "payments" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := p.CompleteCheckout(context.Background(), CompletedSession{
		ID:              "cs_test_1",
		PaymentIntentID: "pi_1",
		Outcome:         stripeinfra.PaymentPaid,
		Metadata:        timeslotMetadata(),
	})
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrRefundedCapacity)
	assert.Equal(t, []string{"pi_1"}, gw.refunds)
	assert.Equal(t, []string{events.PaymentRefundedOnCapacity}, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteCheckout_RefundFailureIsRetryable(t *testing.T) {
	p, mock, gw, _ := newPayments(t)
	gw.err = errors.New("stripe down")

	mock.ExpectQuery(`SELECT \* FROM "tenants"`).WillReturnRows(tenantRow())
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "duration_minutes", "price_cents", "max_per_day", "active"}).
			AddRow(serviceID, tenantID, 60, 9000, 1, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := p.CompleteCheckout(context.Background(), CompletedSession{
		ID: "cs_test_1", PaymentIntentID: "pi_1", Outcome: stripeinfra.PaymentPaid, Metadata: timeslotMetadata(),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRefundedCapacity)
}

func TestCompleteCheckout_BooksAndMarksPaid(t *testing.T) {
	p, mock, _, mem := newPayments(t)

	mock.ExpectQuery(`SELECT \* FROM "tenants"`).WillReturnRows(tenantRow())
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "duration_minutes", "price_cents", "max_per_day", "active"}).
			AddRow(serviceID, tenantID, 60, 12000, 4, true))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO "customers"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cust-1"))
	mock.ExpectQuery(`INSERT INTO "bookings"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("book-1"))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE "payments" SET .*"booking_id"`).WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := p.CompleteCheckout(context.Background(), CompletedSession{
		ID: "cs_test_1", PaymentIntentID: "pi_1", Outcome: stripeinfra.PaymentPaid, Metadata: timeslotMetadata(),
	})
	require.NoError(t, err)
	// total is what was charged, not the service's new price
	assert.Equal(t, int64(9000), b.TotalCents)
	assert.Equal(t, int64(900), b.PlatformFeeCents)
	assert.Equal(t, time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC), b.StartTime.UTC())
	assert.Equal(t, []string{events.BookingConfirmed}, mem.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteCheckout_UnpaidOnlyUpdatesStatus(t *testing.T) {
	p, mock, _, _ := newPayments(t)

	mock.ExpectExec(`UPDATE "payments" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := p.CompleteCheckout(context.Background(), CompletedSession{
		ID: "cs_test_1", Outcome: stripeinfra.PaymentProcessing, Metadata: timeslotMetadata(),
	})
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseMetadata(t *testing.T) {
	md, err := parseMetadata(timeslotMetadata())
	require.NoError(t, err)
	assert.Equal(t, booking.TypeTimeslot, md.kind)
	assert.Equal(t, int64(9000), md.total)

	bad := timeslotMetadata()
	delete(bad, "start")
	_, err = parseMetadata(bad)
	assert.ErrorIs(t, err, ErrBadMetadata)

	bad = timeslotMetadata()
	bad["kind"] = "WEEKLY"
	_, err = parseMetadata(bad)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = parseMetadata(map[string]string{})
	assert.ErrorIs(t, err, ErrBadMetadata)
}
