package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/events"
	"booking-app/internal/infra/mailer"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const QueueName = "booking-app.notifications"

// Bindings are the routing keys the notification queue listens to.
var Bindings = []string{events.BookingConfirmed, events.BookingCanceled, events.PaymentRefundedOnCapacity}

// TenantLookup resolves the studio a customer booked with.
type TenantLookup func(ctx context.Context, id string) (*tenants.Tenant, error)

type Notifier struct {
	mail    mailer.Sender
	tenants TenantLookup
	log     *zap.Logger
}

func New(mail mailer.Sender, lookup TenantLookup, log *zap.Logger) *Notifier {
	return &Notifier{mail: mail, tenants: lookup, log: log}
}

// Handle is an events.Handler.
func (n *Notifier) Handle(ctx context.Context, env events.Envelope) error {
	switch env.Type {
	case events.BookingConfirmed, events.BookingCanceled:
		var notice booking.Notice
		if err := json.Unmarshal(env.Data, &notice); err != nil {
			return fmt.Errorf("%w: %v", events.ErrPermanent, err)
		}
		if notice.CustomerEmail == "" {
			return fmt.Errorf("%w: booking %s has no customer email", events.ErrPermanent, notice.BookingID)
		}
		t, err := n.tenants(ctx, env.TenantID)
		if err != nil {
			return err
		}
		msg := bookingMessage(env.Type, t, notice)
		if err := n.mail.Send(ctx, msg); err != nil {
			return err
		}
		n.log.Info("booking email sent",
			zap.String("type", env.Type),
			zap.String("tenant_id", env.TenantID),
			zap.String("booking_id", notice.BookingID),
		)
		return nil

	case events.PaymentRefundedOnCapacity:
		var data map[string]string
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("%w: %v", events.ErrPermanent, err)
		}
		to := data["customer_email"]
		if to == "" {
			return nil
		}
		t, err := n.tenants(ctx, env.TenantID)
		if err != nil {
			return err
		}
		return n.mail.Send(ctx, mailer.Message{
			To:      to,
			Subject: fmt.Sprintf("%s: your booking could not be completed", t.Name),
			Body: fmt.Sprintf("Sorry, the time you picked at %s was taken while your payment was processing.\n"+
				"Your payment has been refunded in full. Please choose another time on the booking page.", t.Name),
		})

	default:
		n.log.Debug("ignored event", zap.String("type", env.Type))
		return nil
	}
}

func bookingMessage(kind string, t *tenants.Tenant, b booking.Notice) mailer.Message {
	when := b.Date
	if b.StartTime != nil {
		when = b.StartTime.In(t.Location()).Format("Monday 2 January 2006, 15:04")
	}

	var body strings.Builder
	greeting := "Hello"
	if b.CustomerName != "" {
		greeting = "Hello " + b.CustomerName
	}
	body.WriteString(greeting + ",\n\n")

	subject := fmt.Sprintf("%s: booking confirmed for %s", t.Name, when)
	if kind == events.BookingCanceled {
		subject = fmt.Sprintf("%s: booking canceled", t.Name)
		body.WriteString(fmt.Sprintf("Your booking for %s has been canceled.\n", when))
		if b.CancelReason != "" {
			body.WriteString("Reason: " + b.CancelReason + "\n")
		}
	} else {
		body.WriteString(fmt.Sprintf("Your booking for %s is confirmed.\n", when))
		body.WriteString(fmt.Sprintf("Amount paid: %s\n", FormatMoney(b.TotalCents, b.Currency)))
	}
	body.WriteString("\nReference: " + b.BookingID + "\n")

	return mailer.Message{To: b.CustomerEmail, Subject: subject, Body: body.String()}
}

// FormatMoney renders cents as "90.00 EUR".
func FormatMoney(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}

// Inline adapts the notifier into a publisher that delivers in-process. Used
// when RabbitMQ is not configured but SMTP is.
type Inline struct {
	N   *Notifier
	Log *zap.Logger
}

func (i Inline) Publish(_ context.Context, routingKey, tenantID string, payload any) error {
	env, err := events.NewEnvelope(routingKey, tenantID, payload)
	if err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := i.N.Handle(ctx, env); err != nil {
			i.Log.Warn("inline notification failed", zap.String("type", routingKey), zap.Error(err))
		}
	}()
	return nil
}
