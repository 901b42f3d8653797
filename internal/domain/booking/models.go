package booking

import (
	"time"
)

type Type string

const (
	TypeDate     Type = "DATE"
	TypeTimeslot Type = "TIMESLOT"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCanceled  Status = "CANCELED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled:
		return true
	}
	return false
}

type Customer struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_customers_tenant_email,priority:1" json:"tenant_id"`
	Email     string    `gorm:"not null;uniqueIndex:idx_customers_tenant_email,priority:2" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Booking struct {
	ID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID   string    `gorm:"type:uuid;not null;index:idx_bookings_capacity,priority:1" json:"tenant_id"`
	CustomerID string    `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer   *Customer `gorm:"constraint:OnDelete:RESTRICT" json:"customer,omitempty"`

	Type   Type   `gorm:"type:varchar(16);not null" json:"type"`
	Status Status `gorm:"type:varchar(16);not null;index" json:"status"`

	ServiceID *string `gorm:"type:uuid;index:idx_bookings_capacity,priority:2" json:"service_id,omitempty"`
	TierID    *string `gorm:"type:uuid" json:"tier_id,omitempty"`

	// Calendar day in the tenant's timezone, YYYY-MM-DD.
	Date      string     `gorm:"type:varchar(10);not null;index:idx_bookings_capacity,priority:3" json:"date"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	TotalCents       int64  `gorm:"not null" json:"total_cents"`
	PlatformFeeCents int64  `gorm:"not null" json:"platform_fee_cents"`
	Currency         string `gorm:"type:varchar(3);not null" json:"currency"`

	CheckoutSessionID *string `gorm:"uniqueIndex:idx_bookings_checkout_session" json:"checkout_session_id,omitempty"`
	PaymentIntentID   *string `json:"payment_intent_id,omitempty"`

	Notes        string     `json:"notes,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CanceledAt   *time.Time `json:"canceled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) IsActive() bool {
	return b.Status != StatusCanceled
}
