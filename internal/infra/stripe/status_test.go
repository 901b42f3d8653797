package stripe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	stripego "github.com/stripe/stripe-go/v75"
)

func TestSessionOutcome(t *testing.T) {
	cases := []struct {
		status  stripego.CheckoutSessionStatus
		payment stripego.CheckoutSessionPaymentStatus
		want    string
	}{
		{stripego.CheckoutSessionStatusComplete, stripego.CheckoutSessionPaymentStatusPaid, PaymentPaid},
		{stripego.CheckoutSessionStatusComplete, stripego.CheckoutSessionPaymentStatusNoPaymentRequired, PaymentPaid},
		{stripego.CheckoutSessionStatusComplete, stripego.CheckoutSessionPaymentStatusUnpaid, PaymentProcessing},
		{stripego.CheckoutSessionStatusExpired, stripego.CheckoutSessionPaymentStatusUnpaid, PaymentExpired},
		{stripego.CheckoutSessionStatusOpen, stripego.CheckoutSessionPaymentStatusUnpaid, PaymentOpen},
	}
	for _, tc := range cases {
		got := SessionOutcome(&stripego.CheckoutSession{Status: tc.status, PaymentStatus: tc.payment})
		assert.Equal(t, tc.want, got, "%s/%s", tc.status, tc.payment)
	}
	assert.Equal(t, PaymentOpen, SessionOutcome(nil))
}

func TestIsFinal(t *testing.T) {
	assert.True(t, IsFinal(PaymentRefundedCapacity))
	assert.True(t, IsFinal(PaymentPaid))
	assert.False(t, IsFinal(PaymentOpen))
	assert.False(t, IsFinal(PaymentProcessing))
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient("")
	assert.False(t, c.Configured())
	_, err := c.CreateCheckoutSession(t.Context(), CheckoutRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.Refund(t.Context(), "pi_1", ""), ErrNotConfigured)
}
