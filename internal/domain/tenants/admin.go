package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidTimezone   = errors.New("unknown timezone")
	ErrInvalidCurrency   = errors.New("currency must be a 3-letter ISO code")
	ErrInvalidStatus     = errors.New("status must be ACTIVE or SUSPENDED")
	ErrInvalidCommission = errors.New("commission percent must be between 0 and 100")
)

// ProfileUpdate carries the tenant-editable fields. Nil leaves a field alone.
type ProfileUpdate struct {
	Name           *string  `json:"name"`
	Email          *string  `json:"email"`
	Timezone       *string  `json:"timezone"`
	Currency       *string  `json:"currency"`
	AllowedOrigins []string `json:"allowed_origins"`
}

func (u ProfileUpdate) columns() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, errors.New("tenant name is required")
		}
		out["name"] = name
	}
	if u.Email != nil {
		out["email"] = strings.ToLower(strings.TrimSpace(*u.Email))
	}
	if u.Timezone != nil {
		if _, err := time.LoadLocation(*u.Timezone); err != nil || *u.Timezone == "" {
			return nil, ErrInvalidTimezone
		}
		out["timezone"] = *u.Timezone
	}
	if u.Currency != nil {
		c := strings.ToLower(strings.TrimSpace(*u.Currency))
		if len(c) != 3 {
			return nil, ErrInvalidCurrency
		}
		out["currency"] = c
	}
	if u.AllowedOrigins != nil {
		out["allowed_origins"] = pq.StringArray(u.AllowedOrigins)
	}
	return out, nil
}

func UpdateProfile(ctx context.Context, db *gorm.DB, id string, u ProfileUpdate) (*Tenant, error) {
	cols, err := u.columns()
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		if err := updateTenant(ctx, db, id, cols); err != nil {
			return nil, err
		}
	}
	return Get(ctx, db, id)
}

func SetStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	if status != StatusActive && status != StatusSuspended {
		return ErrInvalidStatus
	}
	return updateTenant(ctx, db, id, map[string]interface{}{"status": status})
}

func SetCommission(ctx context.Context, db *gorm.DB, id string, percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidCommission
	}
	return updateTenant(ctx, db, id, map[string]interface{}{"commission_percent": percent})
}

func SetStripeAccount(ctx context.Context, db *gorm.DB, id, accountID string) error {
	return updateTenant(ctx, db, id, map[string]interface{}{"stripe_account_id": accountID})
}

// UpdateBranding merges patch into the stored branding object.
func UpdateBranding(ctx context.Context, db *gorm.DB, id string, patch map[string]interface{}) (map[string]interface{}, error) {
	t, err := Get(ctx, db, id)
	if err != nil {
		return nil, err
	}
	current := map[string]interface{}{}
	if len(t.Branding) > 0 {
		if err := json.Unmarshal(t.Branding, &current); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	if err := updateTenant(ctx, db, id, map[string]interface{}{"branding": datatypes.JSON(raw)}); err != nil {
		return nil, err
	}
	return current, nil
}

func List(ctx context.Context, db *gorm.DB, status string, limit, offset int) ([]Tenant, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := db.WithContext(ctx).Model(&Tenant{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []Tenant
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func updateTenant(ctx context.Context, db *gorm.DB, id string, cols map[string]interface{}) error {
	res := db.WithContext(ctx).Model(&Tenant{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTenantNotFound
	}
	return nil
}
