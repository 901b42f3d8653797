package catalog

import (
	"time"

	"github.com/lib/pq"
)

type Segment struct {
	ID        string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID  string `gorm:"type:uuid;not null;uniqueIndex:idx_segments_tenant_slug,priority:1" json:"-"`
	Slug      string `gorm:"not null;uniqueIndex:idx_segments_tenant_slug,priority:2" json:"slug"`
	Name      string `gorm:"not null" json:"name"`
	SortOrder int    `gorm:"not null" json:"sort_order"`
	Active    bool   `gorm:"not null" json:"active"`

	Tiers []Tier `gorm:"foreignKey:SegmentID;constraint:OnDelete:CASCADE;" json:"tiers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tier is a bookable package. Tiers are booked for a whole calendar day.
type Tier struct {
	ID           string         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID     string         `gorm:"type:uuid;not null;index" json:"-"`
	SegmentID    string         `gorm:"type:uuid;not null;uniqueIndex:idx_tiers_segment_slug,priority:1" json:"segment_id"`
	Slug         string         `gorm:"not null;uniqueIndex:idx_tiers_segment_slug,priority:2" json:"slug"`
	Name         string         `gorm:"not null" json:"name"`
	Description  string         `json:"description,omitempty"`
	PriceCents   int64          `gorm:"not null" json:"price_cents"`
	DepositCents *int64         `json:"deposit_cents,omitempty"`
	Features     pq.StringArray `gorm:"type:text[]" json:"features,omitempty"`
	SortOrder    int            `gorm:"not null" json:"sort_order"`
	Active       bool           `gorm:"not null" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChargeCents is what checkout collects: the deposit when one is configured,
// the full price otherwise.
func (t *Tier) ChargeCents() int64 {
	if t.DepositCents != nil && *t.DepositCents > 0 && *t.DepositCents < t.PriceCents {
		return *t.DepositCents
	}
	return t.PriceCents
}

// Service is a time-slotted offering. MaxPerDay == 0 means unlimited.
type Service struct {
	ID              string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID        string `gorm:"type:uuid;not null;uniqueIndex:idx_services_tenant_slug,priority:1" json:"-"`
	Slug            string `gorm:"not null;uniqueIndex:idx_services_tenant_slug,priority:2" json:"slug"`
	Name            string `gorm:"not null" json:"name"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `gorm:"not null" json:"duration_minutes"`
	BufferMinutes   int    `gorm:"not null" json:"buffer_minutes"`
	PriceCents      int64  `gorm:"not null" json:"price_cents"`
	MaxPerDay       int    `gorm:"not null" json:"max_per_day"`
	SortOrder       int    `gorm:"not null" json:"sort_order"`
	Active          bool   `gorm:"not null" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Service) HasDailyCap() bool {
	return s.MaxPerDay > 0
}

// AvailabilityRule opens a weekly window. ServiceID nil applies tenant-wide.
type AvailabilityRule struct {
	ID        string       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID  string       `gorm:"type:uuid;not null;index:idx_availability_tenant_day,priority:1" json:"-"`
	ServiceID *string      `gorm:"type:uuid;index" json:"service_id,omitempty"`
	Weekday   time.Weekday `gorm:"not null;index:idx_availability_tenant_day,priority:2" json:"weekday"`
	StartTime string       `gorm:"type:varchar(5);not null" json:"start_time"` // "HH:MM"
	EndTime   string       `gorm:"type:varchar(5);not null" json:"end_time"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BlackoutDate struct {
	ID       string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID string `gorm:"type:uuid;not null;uniqueIndex:idx_blackouts_tenant_date,priority:1" json:"-"`
	Date     string `gorm:"type:varchar(10);not null;uniqueIndex:idx_blackouts_tenant_date,priority:2" json:"date"` // YYYY-MM-DD
	Reason   string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
