package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"booking-app/internal/domain/tenants"

	"gorm.io/gorm"
)

var ErrEmailTaken = errors.New("email already registered")

type SignupInput struct {
	BusinessName string
	Name         string
	Lastname     string
	Tel          string
	Email        string
	Password     string // empty for Google sign-up
	GoogleSub    *string
	Timezone     string
	Currency     string
}

type SignupResult struct {
	Tenant    *tenants.Tenant
	Owner     *User
	SecretKey string
}

// Signup creates a tenant and its owner in one transaction.
func Signup(ctx context.Context, db *gorm.DB, in SignupInput, tenantDefaults tenants.CreateInput) (*SignupResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	var hashed *string
	provider := ProviderGoogle
	if in.GoogleSub == nil {
		h, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		hashed = &h
		provider = ProviderLocal
	}

	var out SignupResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}

		ti := tenantDefaults
		ti.Name = strings.TrimSpace(in.BusinessName)
		ti.Email = email
		if in.Timezone != "" {
			ti.Timezone = in.Timezone
		}
		if in.Currency != "" {
			ti.Currency = in.Currency
		}
		t, sk, err := tenants.Create(ctx, tx, ti)
		if err != nil {
			return err
		}

		u := User{
			TenantID:     &t.ID,
			Name:         strings.TrimSpace(in.Name),
			Lastname:     strings.TrimSpace(in.Lastname),
			Tel:          strings.TrimSpace(in.Tel),
			Email:        email,
			Password:     hashed,
			AuthProvider: provider,
			GoogleSub:    in.GoogleSub,
			Role:         RoleOwner,
			IsVerified:   in.GoogleSub != nil,
		}
		if err := tx.Create(&u).Error; err != nil {
			return fmt.Errorf("create owner: %w", err)
		}
		out = SignupResult{Tenant: t, Owner: &u, SecretKey: sk}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
