package billing

import (
	"time"
)

// Payment tracks one Stripe checkout session from opening to settlement.
type Payment struct {
	ID                  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID            string    `gorm:"type:uuid;not null;index" json:"tenant_id"`
	BookingID           *string   `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	StripeSessionID     string    `gorm:"uniqueIndex" json:"stripe_session_id"`
	PaymentIntentID     *string   `json:"payment_intent_id,omitempty"`
	Kind                string    `gorm:"type:varchar(16);not null" json:"kind"` // booking.Type
	ItemID              string    `gorm:"type:uuid;not null" json:"item_id"`
	AmountCents         int64     `gorm:"not null" json:"amount_cents"`
	ApplicationFeeCents int64     `gorm:"not null" json:"application_fee_cents"`
	Currency            string    `gorm:"type:varchar(3);not null" json:"currency"`
	CustomerEmail       string    `json:"customer_email"`
	Status              string    `gorm:"type:varchar(32);not null;index" json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// WebhookEvent records Stripe event ids already handled.
type WebhookEvent struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Type        string    `gorm:"not null" json:"type"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
}

func (WebhookEvent) TableName() string { return "stripe_webhook_events" }
