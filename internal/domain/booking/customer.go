package booking

import (
	"context"
	"net/mail"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in CustomerInput) Validate() error {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// upsertCustomer inserts the customer or refreshes name/phone on the existing
// (tenant, email) row. Empty fields never overwrite stored values, and the
// returned Customer is the row as stored.
func upsertCustomer(ctx context.Context, tx *gorm.DB, tenantID string, in CustomerInput) (*Customer, error) {
	c := &Customer{
		TenantID: tenantID,
		Email:    NormalizeEmail(in.Email),
		Name:     strings.TrimSpace(in.Name),
		Phone:    strings.TrimSpace(in.Phone),
	}

	updates := []string{"updated_at"}
	if c.Name != "" {
		updates = append(updates, "name")
	}
	if c.Phone != "" {
		updates = append(updates, "phone")
	}

	err := tx.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "email"}},
			DoUpdates: clause.AssignmentColumns(updates),
		},
		clause.Returning{},
	).Create(c).Error
	if err != nil {
		return nil, err
	}
	return c, nil
}

func FindCustomerByEmail(ctx context.Context, db *gorm.DB, tenantID, email string) (*Customer, error) {
	var c Customer
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, NormalizeEmail(email)).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
