package users

import "time"

const (
	TokenEmailVerification = "email_verification"
	TokenPasswordReset     = "password_reset"
)

type VerificationToken struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"type:uuid;uniqueIndex"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Token     string `gorm:"uniqueIndex"`
	Type      string `gorm:"index"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (v *VerificationToken) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
