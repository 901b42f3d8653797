package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrWeakPassword   = errors.New("password must be at least 8 characters long and contain both letters and numbers")
	ErrNoPassword     = errors.New("account has no password")
	ErrBadCredentials = errors.New("invalid credentials")
)

const (
	VerificationTTL = 48 * time.Hour
	ResetTTL        = time.Hour
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func HashPassword(password string) (string, error) {
	if !IsPasswordStrong(password) {
		return "", ErrWeakPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares against the stored bcrypt hash.
func (u *User) CheckPassword(password string) error {
	if u.Password == nil || *u.Password == "" {
		return ErrNoPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

func FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error) {
	var u User
	if err := db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func Get(ctx context.Context, db *gorm.DB, id string) (*User, error) {
	var u User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IssueToken replaces the user's outstanding token with a fresh one of kind.
func IssueToken(ctx context.Context, db *gorm.DB, userID, kind string, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	row := VerificationToken{
		UserID:    userID,
		Token:     token,
		Type:      kind,
		ExpiresAt: time.Now().Add(ttl),
	}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "type", "expires_at", "created_at"}),
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// ConsumeToken deletes a valid token of kind and returns its user id.
func ConsumeToken(ctx context.Context, db *gorm.DB, token, kind string) (string, error) {
	var row VerificationToken
	if err := db.WithContext(ctx).Where("token = ? AND type = ?", token, kind).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if row.Expired(time.Now()) {
		db.WithContext(ctx).Delete(&row)
		return "", ErrInvalidToken
	}
	res := db.WithContext(ctx).Where("id = ? AND token = ?", row.ID, token).Delete(&VerificationToken{})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrInvalidToken
	}
	return row.UserID, nil
}

func MarkVerified(ctx context.Context, db *gorm.DB, userID string) error {
	return db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("is_verified", true).Error
}

func SetPassword(ctx context.Context, db *gorm.DB, userID, password string) error {
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("password", hashed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func TouchLogin(ctx context.Context, db *gorm.DB, userID string) {
	db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).UpdateColumn("last_login_at", time.Now())
}

func ListForTenant(ctx context.Context, db *gorm.DB, tenantID string) ([]User, error) {
	var out []User
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func FindByGoogleSub(ctx context.Context, db *gorm.DB, sub string) (*User, error) {
	var u User
	if err := db.WithContext(ctx).Where("google_sub = ?", sub).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// LinkGoogle attaches a Google subject to an existing account. A verified
// Google email also verifies the account.
func LinkGoogle(ctx context.Context, db *gorm.DB, u *User, sub string) error {
	u.GoogleSub = &sub
	u.IsVerified = true
	return db.WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"google_sub":  sub,
		"is_verified": true,
	}).Error
}
