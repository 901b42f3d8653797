package account

import (
	"time"

	"booking-app/internal/domain/access"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/domain/users"
)

type MeResponse struct {
	User   UserDTO    `json:"user"`
	Tenant *TenantDTO `json:"tenant"`
	Access AccessDTO  `json:"access"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Lastname    string     `json:"lastname"`
	Tel         string     `json:"tel"`
	Role        string     `json:"role"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

/* ---------- TENANT ---------- */

type TenantDTO struct {
	ID                string                     `json:"id"`
	Slug              string                     `json:"slug"`
	Name              string                     `json:"name"`
	Status            string                     `json:"status"`
	Timezone          string                     `json:"timezone"`
	Currency          string                     `json:"currency"`
	PublicKey         string                     `json:"public_key"`
	SecretKeyPrefix   string                     `json:"secret_key_prefix"`
	ChargesEnabled    bool                       `json:"charges_enabled"`
	StripeConnected   bool                       `json:"stripe_connected"`
	OnboardingStatus  tenants.OnboardingStatus   `json:"onboarding_status"`
	OnboardingVersion int                        `json:"onboarding_version"`
	NextOnboarding    []tenants.OnboardingStatus `json:"next_onboarding"`
	StorefrontURL     string                     `json:"storefront_url"`
}

/* ---------- ACCESS ---------- */

type AccessDTO struct {
	State        access.AccessState `json:"state"`
	PublicMode   access.PublicMode  `json:"public_mode"`
	Capabilities []string           `json:"capabilities"`
}

func buildUserDTO(u *users.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Lastname:    u.Lastname,
		Tel:         u.Tel,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
	}
}

func buildTenantDTO(t *tenants.Tenant, appURL string) *TenantDTO {
	if t == nil {
		return nil
	}
	return &TenantDTO{
		ID:                t.ID,
		Slug:              t.Slug,
		Name:              t.Name,
		Status:            t.Status,
		Timezone:          t.Timezone,
		Currency:          t.Currency,
		PublicKey:         t.PublicKey,
		SecretKeyPrefix:   t.SecretKeyPrefix,
		ChargesEnabled:    t.ChargesEnabled,
		StripeConnected:   t.StripeAccountID != nil && *t.StripeAccountID != "",
		OnboardingStatus:  t.OnboardingStatus,
		OnboardingVersion: t.OnboardingVersion,
		NextOnboarding:    tenants.NextStatuses(t.OnboardingStatus),
		StorefrontURL:     tenants.BuildStorefrontURL(appURL, t.Slug),
	}
}

func buildAccessDTO(p access.Policy) AccessDTO {
	caps := p.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return AccessDTO{State: p.State, PublicMode: p.PublicMode, Capabilities: caps}
}
