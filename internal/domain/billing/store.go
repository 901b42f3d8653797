package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPaymentNotFound = errors.New("payment not found")

func CreatePayment(ctx context.Context, db *gorm.DB, p *Payment) error {
	return db.WithContext(ctx).Create(p).Error
}

func FindBySession(ctx context.Context, db *gorm.DB, sessionID string) (*Payment, error) {
	var p Payment
	if err := db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SetStatus moves a session's payment row; extra columns are optional.
func SetStatus(ctx context.Context, db *gorm.DB, sessionID, status string, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).Model(&Payment{}).
		Where("stripe_session_id = ?", sessionID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func ListForTenant(ctx context.Context, db *gorm.DB, tenantID string, limit int) ([]Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Payment
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func ListAll(ctx context.Context, db *gorm.DB, status string, limit int) ([]Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []Payment
	err := q.Find(&out).Error
	return out, err
}

func EventProcessed(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&WebhookEvent{}).Where("id = ?", eventID).Count(&n).Error
	return n > 0, err
}

// MarkEventProcessed is called after an event was fully handled so a failed
// attempt stays retryable.
func MarkEventProcessed(ctx context.Context, db *gorm.DB, eventID, eventType string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&WebhookEvent{ID: eventID, Type: eventType, ProcessedAt: time.Now().UTC()}).Error
}
