package booking

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Filter struct {
	Status    Status
	Type      Type
	ServiceID string
	From      string // inclusive YYYY-MM-DD
	To        string // inclusive YYYY-MM-DD
	Limit     int
	Offset    int
}

const maxPageSize = 200

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ServiceID != "" {
		q = q.Where("service_id = ?", f.ServiceID)
	}
	if f.From != "" {
		q = q.Where("date >= ?", f.From)
	}
	if f.To != "" {
		q = q.Where("date <= ?", f.To)
	}
	return q
}

func (f Filter) page() (int, int) {
	limit := f.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns one page of the tenant's bookings and the total match count.
func List(ctx context.Context, db *gorm.DB, tenantID string, f Filter) ([]Booking, int64, error) {
	base := f.apply(db.WithContext(ctx).Model(&Booking{}).Where("tenant_id = ?", tenantID))

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := f.page()
	var out []Booking
	err := f.apply(db.WithContext(ctx).Where("tenant_id = ?", tenantID)).
		Preload("Customer").
		Order("date DESC, start_time DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func Get(ctx context.Context, db *gorm.DB, tenantID, id string) (*Booking, error) {
	var b Booking
	err := db.WithContext(ctx).
		Preload("Customer").
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// FindBySession looks a booking up by Stripe checkout session across tenants.
func FindBySession(ctx context.Context, db *gorm.DB, sessionID string) (*Booking, error) {
	var b Booking
	err := db.WithContext(ctx).Where("checkout_session_id = ?", sessionID).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func ListCustomers(ctx context.Context, db *gorm.DB, tenantID string) ([]Customer, error) {
	var out []Customer
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("email ASC").Find(&out).Error
	return out, err
}

// MaxExportRows bounds a single spreadsheet export.
const MaxExportRows = 10000

// ListForExport returns every booking matching f, oldest first, up to MaxExportRows.
func ListForExport(ctx context.Context, db *gorm.DB, tenantID string, f Filter) ([]Booking, error) {
	var out []Booking
	err := f.apply(db.WithContext(ctx).Where("tenant_id = ?", tenantID)).
		Preload("Customer").
		Order("date ASC, start_time ASC").
		Limit(MaxExportRows).
		Find(&out).Error
	return out, err
}
