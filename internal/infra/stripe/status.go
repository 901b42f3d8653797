package stripe

import (
	"strings"

	stripego "github.com/stripe/stripe-go/v75"
)

// Payment row statuses.
const (
	PaymentOpen             = "open"
	PaymentProcessing       = "processing"
	PaymentPaid             = "paid"
	PaymentExpired          = "expired"
	PaymentFailed           = "failed"
	PaymentRefundedCapacity = "refunded_capacity"
)

// SessionOutcome folds a checkout session's status and payment_status into
// one payment row status.
func SessionOutcome(s *stripego.CheckoutSession) string {
	if s == nil {
		return PaymentOpen
	}
	switch strings.TrimSpace(string(s.Status)) {
	case string(stripego.CheckoutSessionStatusExpired):
		return PaymentExpired
	case string(stripego.CheckoutSessionStatusComplete):
		switch s.PaymentStatus {
		case stripego.CheckoutSessionPaymentStatusPaid, stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
			return PaymentPaid
		default:
			// async methods (SEPA, bank transfer) settle later
			return PaymentProcessing
		}
	default:
		return PaymentOpen
	}
}

// IsFinal reports whether a payment status can no longer change.
func IsFinal(status string) bool {
	switch status {
	case PaymentPaid, PaymentExpired, PaymentFailed, PaymentRefundedCapacity:
		return true
	}
	return false
}
