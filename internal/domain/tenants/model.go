package tenants

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
)

type Tenant struct {
	ID       string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Slug     string `gorm:"not null;uniqueIndex:idx_tenants_slug" json:"slug"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"not null" json:"email"`
	Status   string `gorm:"type:varchar(20);not null" json:"status"`
	Timezone string `gorm:"type:varchar(64);not null" json:"timezone"`
	Currency string `gorm:"type:varchar(3);not null" json:"currency"`

	CommissionPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"commission_percent"`

	StripeAccountID *string `gorm:"column:stripe_account_id;uniqueIndex:idx_tenants_stripe_account_id" json:"stripe_account_id,omitempty"`
	ChargesEnabled  bool    `gorm:"not null" json:"charges_enabled"`

	PublicKey       string `gorm:"not null;uniqueIndex:idx_tenants_public_key" json:"public_key"`
	SecretKeyHash   string `gorm:"not null;uniqueIndex:idx_tenants_secret_key_hash" json:"-"`
	SecretKeyPrefix string `gorm:"not null" json:"secret_key_prefix"`

	OnboardingStatus  OnboardingStatus `gorm:"type:varchar(32);not null" json:"onboarding_status"`
	OnboardingVersion int              `gorm:"not null" json:"onboarding_version"`

	Branding       datatypes.JSON `gorm:"type:jsonb" json:"branding,omitempty"`
	AllowedOrigins pq.StringArray `gorm:"type:text[]" json:"allowed_origins,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location returns the tenant's calendar timezone; bookings are bucketed by
// calendar day in this zone.
func (t *Tenant) Location() *time.Location {
	if t == nil || t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (t *Tenant) CanAcceptPayments() bool {
	return t != nil &&
		t.Status == StatusActive &&
		t.ChargesEnabled &&
		t.StripeAccountID != nil && *t.StripeAccountID != ""
}

// Secret is a named per-tenant credential, stored sealed (see infra/secrets).
type Secret struct {
	ID         string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID   string `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_secrets_name,priority:1" json:"tenant_id"`
	Name       string `gorm:"not null;uniqueIndex:idx_tenant_secrets_name,priority:2" json:"name"`
	Ciphertext string `gorm:"not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Secret) TableName() string { return "tenant_secrets" }
