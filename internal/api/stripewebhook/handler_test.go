package stripewebhooks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/booking"
	stripeinfra "booking-app/internal/infra/stripe"
	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
)

const secret = "whsec_test"

type fakeSettler struct {
	completed []billing.CompletedSession
	expired   []string
	accounts  map[string]bool
	err       error
}

func (f *fakeSettler) CompleteCheckout(_ context.Context, s billing.CompletedSession) (*booking.Booking, error) {
	f.completed = append(f.completed, s)
	return &booking.Booking{ID: "b1"}, f.err
}

func (f *fakeSettler) ExpireCheckout(_ context.Context, id string) error {
	f.expired = append(f.expired, id)
	return f.err
}

func (f *fakeSettler) AccountUpdated(_ context.Context, id string, enabled bool) error {
	if f.accounts == nil {
		f.accounts = map[string]bool{}
	}
	f.accounts[id] = enabled
	return f.err
}

func setup(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *fakeSettler) {
	gin.SetMode(gin.TestMode)
	db, mock := testutil.NewMockDB(t)
	settler := &fakeSettler{}
	h := NewHandler(db, settler, secret, zap.NewNop())
	r := gin.New()
	r.POST("/webhook", h.StripeWebhook)
	return r, mock, settler
}

func post(t *testing.T, r *gin.Engine, payload string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func event(id, typ, object string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, id, typ, object)
}

const paidSession = `{"id":"cs_1","object":"checkout.session","status":"complete","payment_status":"paid",` +
	`"payment_intent":"pi_1","metadata":{"tenant_id":"t1","kind":"DATE"}}`

func expectNotProcessed(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stripe_webhook_events" WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	r, _, settler := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(event("evt_1", "checkout.session.completed", paidSession)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, settler.completed)
}

func TestWebhook_CompletesPaidSession(t *testing.T) {
	r, mock, settler := setup(t)
	expectNotProcessed(mock, "evt_1")
	mock.ExpectExec(`INSERT INTO "stripe_webhook_events"`).WillReturnResult(sqlmock.NewResult(0, 1))

	w := post(t, r, event("evt_1", "checkout.session.completed", paidSession))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, settler.completed, 1)
	got := settler.completed[0]
	assert.Equal(t, "cs_1", got.ID)
	assert.Equal(t, "pi_1", got.PaymentIntentID)
	assert.Equal(t, stripeinfra.PaymentPaid, got.Outcome)
	assert.Equal(t, "t1", got.Metadata["tenant_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_DuplicateEventSkipped(t *testing.T) {
	r, mock, settler := setup(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stripe_webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := post(t, r, event("evt_1", "checkout.session.completed", paidSession))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")
	assert.Empty(t, settler.completed)
}

func TestWebhook_FailureLeavesEventRetryable(t *testing.T) {
	r, mock, settler := setup(t)
	settler.err = fmt.Errorf("database unavailable")
	expectNotProcessed(mock, "evt_2")

	w := post(t, r, event("evt_2", "checkout.session.completed", paidSession))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// no INSERT into stripe_webhook_events was expected
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_CapacityRefundAcknowledged(t *testing.T) {
	r, mock, settler := setup(t)
	settler.err = fmt.Errorf("%w: sold out", billing.ErrRefundedCapacity)
	expectNotProcessed(mock, "evt_3")
	mock.ExpectExec(`INSERT INTO "stripe_webhook_events"`).WillReturnResult(sqlmock.NewResult(0, 1))

	w := post(t, r, event("evt_3", "checkout.session.completed", paidSession))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_ExpiredSession(t *testing.T) {
	r, mock, settler := setup(t)
	expectNotProcessed(mock, "evt_4")
	mock.ExpectExec(`INSERT INTO "stripe_webhook_events"`).WillReturnResult(sqlmock.NewResult(0, 1))

	w := post(t, r, event("evt_4", "checkout.session.expired", `{"id":"cs_9","object":"checkout.session","status":"expired"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cs_9"}, settler.expired)
}

func TestWebhook_AccountUpdated(t *testing.T) {
	r, mock, settler := setup(t)
	expectNotProcessed(mock, "evt_5")
	mock.ExpectExec(`INSERT INTO "stripe_webhook_events"`).WillReturnResult(sqlmock.NewResult(0, 1))

	w := post(t, r, event("evt_5", "account.updated", `{"id":"acct_1","object":"account","charges_enabled":true}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, settler.accounts["acct_1"])
}

func TestWebhook_UnknownEventIgnored(t *testing.T) {
	r, mock, _ := setup(t)
	expectNotProcessed(mock, "evt_6")

	w := post(t, r, event("evt_6", "invoice.paid", `{"id":"in_1","object":"invoice"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}
