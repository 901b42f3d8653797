package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/booking"
	stripeinfra "booking-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxBodyBytes = 65536

// Settler applies checkout and account events to local state.
type Settler interface {
	CompleteCheckout(ctx context.Context, s billing.CompletedSession) (*booking.Booking, error)
	ExpireCheckout(ctx context.Context, sessionID string) error
	AccountUpdated(ctx context.Context, accountID string, chargesEnabled bool) error
}

type Handler struct {
	DB       *gorm.DB
	Payments Settler
	Secret   string
	Log      *zap.Logger
}

func NewHandler(db *gorm.DB, payments Settler, secret string, log *zap.Logger) *Handler {
	return &Handler{DB: db, Payments: payments, Secret: secret, Log: log}
}

var (
	// errIgnored marks events acknowledged without any local effect.
	errIgnored   = errors.New("ignored")
	errMalformed = errors.New("malformed payload")
)

func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.Secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.Log.Warn("stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	ctx := c.Request.Context()
	log := h.Log.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	done, err := billing.EventProcessed(ctx, h.DB, event.ID)
	if err != nil {
		log.Error("event lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event lookup failed"})
		return
	}
	if done {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	err = h.dispatch(ctx, event)
	switch {
	case errors.Is(err, errIgnored):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	case errors.Is(err, errMalformed):
		log.Warn("malformed event payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event"})
		return
	case errors.Is(err, billing.ErrRefundedCapacity):
		// Handled: the customer was refunded. Stripe must not retry.
		log.Warn("booking refused at settlement", zap.Error(err))
	case errors.Is(err, billing.ErrBadMetadata):
		// Retrying cannot fix a session we did not open.
		log.Error("checkout session without booking metadata", zap.Error(err))
	case err != nil:
		log.Error("webhook handling failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handling failed"})
		return
	}

	if err := billing.MarkEventProcessed(ctx, h.DB, event.ID, string(event.Type)); err != nil {
		log.Warn("mark event processed failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *Handler) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		s, err := decodeSession(event)
		if err != nil {
			return err
		}
		_, err = h.Payments.CompleteCheckout(ctx, completed(s, stripeinfra.SessionOutcome(s)))
		return err

	case "checkout.session.async_payment_failed":
		s, err := decodeSession(event)
		if err != nil {
			return err
		}
		_, err = h.Payments.CompleteCheckout(ctx, completed(s, stripeinfra.PaymentFailed))
		return err

	case "checkout.session.expired":
		s, err := decodeSession(event)
		if err != nil {
			return err
		}
		return h.Payments.ExpireCheckout(ctx, s.ID)

	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return errors.Join(errMalformed, err)
		}
		return h.Payments.AccountUpdated(ctx, acct.ID, acct.ChargesEnabled)

	default:
		return errIgnored
	}
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, errors.Join(errMalformed, err)
	}
	if s.ID == "" {
		return nil, errMalformed
	}
	return &s, nil
}

func completed(s *stripe.CheckoutSession, outcome string) billing.CompletedSession {
	out := billing.CompletedSession{ID: s.ID, Outcome: outcome, Metadata: s.Metadata}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
