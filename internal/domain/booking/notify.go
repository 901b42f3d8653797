package booking

import (
	"context"
	"time"

	"booking-app/internal/infra/events"

	"go.uber.org/zap"
)

// Notice is the payload of booking.* events.
type Notice struct {
	BookingID     string     `json:"booking_id"`
	Type          Type       `json:"type"`
	Status        Status     `json:"status"`
	Date          string     `json:"date"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	ServiceID     *string    `json:"service_id,omitempty"`
	TierID        *string    `json:"tier_id,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	TotalCents    int64      `json:"total_cents"`
	Currency      string     `json:"currency"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
}

func NoticeFor(b *Booking) Notice {
	n := Notice{
		BookingID:    b.ID,
		Type:         b.Type,
		Status:       b.Status,
		Date:         b.Date,
		StartTime:    b.StartTime,
		ServiceID:    b.ServiceID,
		TierID:       b.TierID,
		TotalCents:   b.TotalCents,
		Currency:     b.Currency,
		CancelReason: b.CancelReason,
	}
	if b.Customer != nil {
		n.CustomerEmail = b.Customer.Email
		n.CustomerName = b.Customer.Name
	}
	return n
}

// publish announces a newly confirmed booking. PENDING bookings stay quiet
// until Confirm.
func (s *Service) publish(ctx context.Context, b *Booking) {
	if b.Status != StatusConfirmed {
		return
	}
	s.emit(ctx, events.BookingConfirmed, b)
}

func (s *Service) emit(ctx context.Context, routingKey string, b *Booking) {
	if err := s.events.Publish(ctx, routingKey, b.TenantID, NoticeFor(b)); err != nil {
		// the booking is committed; a lost event only skips the email
		s.log.Warn("publish booking event",
			zap.String("routing_key", routingKey),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
