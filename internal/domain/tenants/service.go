package tenants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"booking-app/internal/infra/secrets"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSecretNotFound = errors.New("secret not found")

type CreateInput struct {
	Name              string
	Email             string
	Timezone          string
	Currency          string
	CommissionPercent decimal.Decimal
	KeyMode           string
}

// Create inserts a tenant with a unique slug and fresh API keys. The
// plaintext secret key is only returned here.
func Create(ctx context.Context, db *gorm.DB, in CreateInput) (*Tenant, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, "", fmt.Errorf("tenant name is required")
	}

	slug, err := UniqueSlug(db.WithContext(ctx), MakeSlug(name))
	if err != nil {
		return nil, "", fmt.Errorf("slug: %w", err)
	}

	mode := in.KeyMode
	if mode == "" {
		mode = KeyMode(false)
	}
	pk, err := GeneratePublicKey(slug, mode)
	if err != nil {
		return nil, "", err
	}
	sk, skHash, err := GenerateSecretKey(slug, mode)
	if err != nil {
		return nil, "", err
	}

	tz := in.Timezone
	if tz == "" {
		tz = "UTC"
	}
	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = "usd"
	}

	t := Tenant{
		Slug:              slug,
		Name:              name,
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		Status:            StatusActive,
		Timezone:          tz,
		Currency:          currency,
		CommissionPercent: in.CommissionPercent,
		PublicKey:         pk,
		SecretKeyHash:     skHash,
		SecretKeyPrefix:   SecretKeyPrefix(sk),
		OnboardingStatus:  OnboardingNotStarted,
	}
	if err := db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, "", fmt.Errorf("create tenant: %w", err)
	}
	return &t, sk, nil
}

func Get(ctx context.Context, db *gorm.DB, id string) (*Tenant, error) {
	var t Tenant
	if err := db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func GetBySlug(ctx context.Context, db *gorm.DB, slug string) (*Tenant, error) {
	var t Tenant
	if err := db.WithContext(ctx).First(&t, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func FindByPublicKey(ctx context.Context, db *gorm.DB, key string) (*Tenant, error) {
	parsed, err := ParseKey(key)
	if err != nil || parsed.Kind != "pk" {
		return nil, ErrInvalidKeyFormat
	}
	var t Tenant
	if err := db.WithContext(ctx).First(&t, "public_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func FindBySecretKey(ctx context.Context, db *gorm.DB, key string) (*Tenant, error) {
	parsed, err := ParseKey(key)
	if err != nil || parsed.Kind != "sk" {
		return nil, ErrInvalidKeyFormat
	}
	var t Tenant
	if err := db.WithContext(ctx).First(&t, "secret_key_hash = ?", HashSecretKey(key)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	if !VerifySecretKey(key, t.SecretKeyHash) {
		return nil, ErrTenantNotFound
	}
	return &t, nil
}

// RotateSecretKey replaces the secret key; the old key stops working at once.
func RotateSecretKey(ctx context.Context, db *gorm.DB, tenantID, mode string) (string, error) {
	t, err := Get(ctx, db, tenantID)
	if err != nil {
		return "", err
	}
	sk, skHash, err := GenerateSecretKey(t.Slug, mode)
	if err != nil {
		return "", err
	}
	if err := db.WithContext(ctx).Model(&Tenant{}).
		Where("id = ?", tenantID).
		Updates(map[string]interface{}{
			"secret_key_hash":   skHash,
			"secret_key_prefix": SecretKeyPrefix(sk),
		}).Error; err != nil {
		return "", fmt.Errorf("rotate key: %w", err)
	}
	return sk, nil
}

func secretAD(tenantID, name string) string {
	return tenantID + ":" + name
}

func PutSecret(ctx context.Context, db *gorm.DB, box *secrets.Box, tenantID, name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	sealed, err := box.Seal(value, secretAD(tenantID, name))
	if err != nil {
		return err
	}
	row := Secret{TenantID: tenantID, Name: name, Ciphertext: sealed}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "updated_at"}),
	}).Create(&row).Error
}

func GetSecret(ctx context.Context, db *gorm.DB, box *secrets.Box, tenantID, name string) (string, error) {
	var row Secret
	if err := db.WithContext(ctx).First(&row, "tenant_id = ? AND name = ?", tenantID, name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSecretNotFound
		}
		return "", err
	}
	return box.Open(row.Ciphertext, secretAD(tenantID, name))
}

func DeleteSecret(ctx context.Context, db *gorm.DB, tenantID, name string) error {
	res := db.WithContext(ctx).Where("tenant_id = ? AND name = ?", tenantID, name).Delete(&Secret{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSecretNotFound
	}
	return nil
}

func ListSecretNames(ctx context.Context, db *gorm.DB, tenantID string) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).Model(&Secret{}).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Pluck("name", &names).Error
	return names, err
}
