package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-app/internal/domain/tenants"

	"gorm.io/gorm"
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

/* ---------- segments ---------- */

func ListSegments(ctx context.Context, db *gorm.DB, tenantID string, activeOnly bool) ([]Segment, error) {
	q := db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []Segment
	err := q.Preload("Tiers", func(db *gorm.DB) *gorm.DB {
		if activeOnly {
			db = db.Where("active = ?", true)
		}
		return db.Order("sort_order ASC, name ASC")
	}).
		Order("sort_order ASC, name ASC").
		Find(&out).Error
	return out, err
}

func CreateSegment(ctx context.Context, db *gorm.DB, tenantID string, s *Segment) error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	s.TenantID = tenantID
	if s.Slug == "" {
		s.Slug = tenants.MakeSlug(s.Name)
	}
	return db.WithContext(ctx).Create(s).Error
}

func UpdateSegment(ctx context.Context, db *gorm.DB, tenantID, id string, updates map[string]interface{}) error {
	res := db.WithContext(ctx).Model(&Segment{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func DeleteSegment(ctx context.Context, db *gorm.DB, tenantID, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("segment_id = ? AND tenant_id = ?", id, tenantID).Delete(&Tier{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&Segment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

/* ---------- tiers ---------- */

func GetTier(ctx context.Context, db *gorm.DB, tenantID, id string) (*Tier, error) {
	var t Tier
	if err := db.WithContext(ctx).First(&t, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func CreateTier(ctx context.Context, db *gorm.DB, tenantID string, t *Tier) error {
	if err := t.Validate(); err != nil {
		return err
	}
	var seg Segment
	if err := db.WithContext(ctx).Select("id").First(&seg, "id = ? AND tenant_id = ?", t.SegmentID, tenantID).Error; err != nil {
		return notFound(err)
	}
	t.TenantID = tenantID
	if t.Slug == "" {
		t.Slug = tenants.MakeSlug(t.Name)
	}
	return db.WithContext(ctx).Create(t).Error
}

func UpdateTier(ctx context.Context, db *gorm.DB, tenantID, id string, apply func(*Tier)) (*Tier, error) {
	t, err := GetTier(ctx, db, tenantID, id)
	if err != nil {
		return nil, err
	}
	apply(t)
	t.ID, t.TenantID = id, tenantID
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func DeleteTier(ctx context.Context, db *gorm.DB, tenantID, id string) error {
	res := db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&Tier{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

/* ---------- services ---------- */

func ListServices(ctx context.Context, db *gorm.DB, tenantID string, activeOnly bool) ([]Service, error) {
	q := db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []Service
	err := q.Order("sort_order ASC, name ASC").Find(&out).Error
	return out, err
}

func GetService(ctx context.Context, db *gorm.DB, tenantID, id string) (*Service, error) {
	var s Service
	if err := db.WithContext(ctx).First(&s, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func CreateService(ctx context.Context, db *gorm.DB, tenantID string, s *Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.TenantID = tenantID
	if s.Slug == "" {
		s.Slug = tenants.MakeSlug(s.Name)
	}
	return db.WithContext(ctx).Create(s).Error
}

// UpdateService loads the service, lets apply mutate it, validates and saves.
// Price changes never touch existing bookings: each booking stores its own total.
func UpdateService(ctx context.Context, db *gorm.DB, tenantID, id string, apply func(*Service)) (*Service, error) {
	s, err := GetService(ctx, db, tenantID, id)
	if err != nil {
		return nil, err
	}
	apply(s)
	s.ID, s.TenantID = id, tenantID
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Save(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// DeactivateService hides a service; rows stay because bookings reference them.
func DeactivateService(ctx context.Context, db *gorm.DB, tenantID, id string) error {
	res := db.WithContext(ctx).Model(&Service{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

/* ---------- availability ---------- */

func ListAvailabilityRules(ctx context.Context, db *gorm.DB, tenantID string) ([]AvailabilityRule, error) {
	var out []AvailabilityRule
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("weekday ASC, start_time ASC").
		Find(&out).Error
	return out, err
}

// RulesForDay returns the rules that apply to serviceID on weekday: the
// service's own rules when it has any, the tenant-wide ones otherwise.
func RulesForDay(ctx context.Context, db *gorm.DB, tenantID, serviceID string, weekday time.Weekday) ([]AvailabilityRule, error) {
	var rows []AvailabilityRule
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND weekday = ? AND (service_id = ? OR service_id IS NULL)", tenantID, int(weekday), serviceID).
		Order("start_time ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return pickRules(rows), nil
}

func pickRules(rows []AvailabilityRule) []AvailabilityRule {
	var specific, general []AvailabilityRule
	for _, r := range rows {
		if r.ServiceID != nil {
			specific = append(specific, r)
		} else {
			general = append(general, r)
		}
	}
	if len(specific) > 0 {
		return specific
	}
	return general
}

// ReplaceAvailability swaps the weekly rules for one scope (tenant-wide when
// serviceID is nil) in a single transaction.
func ReplaceAvailability(ctx context.Context, db *gorm.DB, tenantID string, serviceID *string, rules []AvailabilityRule) error {
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return err
		}
		rules[i].TenantID = tenantID
		rules[i].ServiceID = serviceID
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("tenant_id = ?", tenantID)
		if serviceID == nil {
			q = q.Where("service_id IS NULL")
		} else {
			q = q.Where("service_id = ?", *serviceID)
		}
		if err := q.Delete(&AvailabilityRule{}).Error; err != nil {
			return err
		}
		if len(rules) == 0 {
			return nil
		}
		return tx.Create(&rules).Error
	})
}

func ListBlackouts(ctx context.Context, db *gorm.DB, tenantID string) ([]BlackoutDate, error) {
	var out []BlackoutDate
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("date ASC").Find(&out).Error
	return out, err
}

func IsBlackout(ctx context.Context, db *gorm.DB, tenantID, date string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&BlackoutDate{}).
		Where("tenant_id = ? AND date = ?", tenantID, date).
		Count(&n).Error
	return n > 0, err
}

func AddBlackout(ctx context.Context, db *gorm.DB, tenantID string, b *BlackoutDate) error {
	if _, err := time.Parse("2006-01-02", b.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	b.TenantID = tenantID
	return db.WithContext(ctx).Create(b).Error
}

func DeleteBlackout(ctx context.Context, db *gorm.DB, tenantID, id string) error {
	res := db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&BlackoutDate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
