package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"

	"booking-app/config"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/domain/users"
	"booking-app/internal/infra/mailer"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	DB         *gorm.DB
	Mail       mailer.Sender
	Log        *zap.Logger
	Commission decimal.Decimal
}

func NewHandler(db *gorm.DB, mail mailer.Sender, log *zap.Logger, commission decimal.Decimal) *Handler {
	return &Handler{DB: db, Mail: mail, Log: log, Commission: commission}
}

func (h *Handler) tenantDefaults() tenants.CreateInput {
	return tenants.CreateInput{
		CommissionPercent: h.Commission,
		KeyMode:           tenants.KeyMode(config.IsProduction()),
	}
}

func isEmailValid(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func (h *Handler) sendLink(ctx context.Context, to, subject, path, token string) {
	link := fmt.Sprintf("%s%s?token=%s", config.APP_URL, path, token)
	err := h.Mail.Send(ctx, mailer.Message{
		To:      to,
		Subject: subject,
		Body:    fmt.Sprintf("Open the following link to continue:\n\n%s\n", link),
	})
	if err != nil {
		h.Log.Error("send email failed", zap.String("subject", subject), zap.Error(err))
	}
}

func issueToken(u *users.User) (string, error) {
	return middleware.IssueToken(middleware.Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantIDValue(),
	})
}

func issue(c *gin.Context, u *users.User) {
	token, err := issueToken(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Signup creates a tenant together with its owner account.
func (h *Handler) Signup(c *gin.Context) {
	var input struct {
		BusinessName string `json:"business_name" binding:"required"`
		Name         string `json:"name" binding:"required"`
		Lastname     string `json:"lastname" binding:"required"`
		Tel          string `json:"tel"`
		Email        string `json:"email" binding:"required"`
		Password     string `json:"password" binding:"required"`
		Timezone     string `json:"timezone"`
		Currency     string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !isEmailValid(input.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}
	if !users.IsPasswordStrong(input.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": users.ErrWeakPassword.Error()})
		return
	}

	ctx := c.Request.Context()
	res, err := users.Signup(ctx, h.DB, users.SignupInput{
		BusinessName: input.BusinessName,
		Name:         input.Name,
		Lastname:     input.Lastname,
		Tel:          input.Tel,
		Email:        input.Email,
		Password:     input.Password,
		Timezone:     input.Timezone,
		Currency:     input.Currency,
	}, h.tenantDefaults())
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		h.Log.Error("signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	token, err := users.IssueToken(ctx, h.DB, res.Owner.ID, users.TokenEmailVerification, users.VerificationTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create verification token"})
		return
	}
	h.sendLink(ctx, res.Owner.Email, "Verify your account", "/verify", token)

	h.Log.Info("tenant signed up", zap.String("tenant_id", res.Tenant.ID), zap.String("slug", res.Tenant.Slug))
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Account created. Please check your email to verify your account.",
		"tenant":     res.Tenant,
		"secret_key": res.SecretKey,
		"storefront": tenants.BuildStorefrontURL(config.APP_URL, res.Tenant.Slug),
	})
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := users.FindByEmail(c.Request.Context(), h.DB, input.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !user.IsVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email before logging in"})
		return
	}
	if err := user.CheckPassword(input.Password); err != nil {
		if errors.Is(err, users.ErrNoPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "This account uses Google sign-in"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	users.TouchLogin(c.Request.Context(), h.DB, user.ID)
	issue(c, user)
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing token"})
		return
	}
	ctx := c.Request.Context()
	userID, err := users.ConsumeToken(ctx, h.DB, body.Token, users.TokenEmailVerification)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}
	if err := users.MarkVerified(ctx, h.DB, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid email"})
		return
	}

	ctx := c.Request.Context()
	user, err := users.FindByEmail(ctx, h.DB, body.Email)
	if err != nil || user.IsVerified {
		// same answer either way
		c.JSON(http.StatusOK, gin.H{"message": "If the account needs verification, a new email is on its way."})
		return
	}

	token, err := users.IssueToken(ctx, h.DB, user.ID, users.TokenEmailVerification, users.VerificationTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store verification token"})
		return
	}
	h.sendLink(ctx, user.Email, "Verify your account", "/verify", token)
	c.JSON(http.StatusOK, gin.H{"message": "If the account needs verification, a new email is on its way."})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		return
	}

	ctx := c.Request.Context()
	const reply = "If your email exists, you'll receive a reset link."
	user, err := users.FindByEmail(ctx, h.DB, body.Email)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": reply})
		return
	}
	token, err := users.IssueToken(ctx, h.DB, user.ID, users.TokenPasswordReset, users.ResetTTL)
	if err != nil {
		h.Log.Error("issue reset token", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"message": reply})
		return
	}
	h.sendLink(ctx, user.Email, "Reset your password", "/reset-password", token)
	c.JSON(http.StatusOK, gin.H{"message": reply})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !users.IsPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": users.ErrWeakPassword.Error()})
		return
	}

	ctx := c.Request.Context()
	userID, err := users.ConsumeToken(ctx, h.DB, body.Token, users.TokenPasswordReset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}
	if err := users.SetPassword(ctx, h.DB, userID, body.NewPassword); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if !users.IsPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": users.ErrWeakPassword.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := users.Get(ctx, h.DB, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if err := user.CheckPassword(body.OldPassword); err != nil {
		if errors.Is(err, users.ErrNoPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "This account does not have a password. Sign in with Google."})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Old password is incorrect"})
		return
	}
	if err := users.SetPassword(ctx, h.DB, user.ID, body.NewPassword); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
