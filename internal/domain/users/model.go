package users

import (
	"time"
)

const (
	RoleOwner         = "owner"
	RoleStaff         = "staff"
	RolePlatformAdmin = "platform_admin"

	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User is a dashboard login. Platform admins have no tenant.
type User struct {
	ID           string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID     *string `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	Name         string  `json:"name"`
	Lastname     string  `json:"lastname"`
	Tel          string  `json:"tel,omitempty"`
	Email        string  `gorm:"not null;uniqueIndex:idx_users_email" json:"email"`
	Password     *string `json:"-"`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'" json:"auth_provider"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub" json:"-"`
	Role         string  `gorm:"type:varchar(20);not null" json:"role"`
	IsVerified   bool    `json:"is_verified"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsPlatformAdmin() bool {
	return u.Role == RolePlatformAdmin
}

func (u *User) TenantIDValue() string {
	if u.TenantID == nil {
		return ""
	}
	return *u.TenantID
}
