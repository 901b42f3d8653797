package account

import (
	"context"
	"net/http"
	"strings"

	"booking-app/config"
	"booking-app/internal/api/apierr"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/access"
	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/domain/users"
	"booking-app/internal/infra/cache"
	"booking-app/internal/infra/events"
	"booking-app/internal/infra/secrets"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Connector is the part of the Stripe client used to connect a tenant account.
type Connector interface {
	CreateConnectedAccount(ctx context.Context, email, tenantID string) (string, error)
	OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
}

type Handler struct {
	DB      *gorm.DB
	Cache   cache.Cache
	Secrets *secrets.Box
	Stripe  Connector
	Events  events.Publisher
	Log     *zap.Logger
	AppURL  string
}

func NewHandler(db *gorm.DB, c cache.Cache, box *secrets.Box, stripe Connector, pub events.Publisher, log *zap.Logger) *Handler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{
		DB:      db,
		Cache:   c,
		Secrets: box,
		Stripe:  stripe,
		Events:  pub,
		Log:     log,
		AppURL:  strings.TrimRight(config.APP_URL, "/"),
	}
}

// invalidateTenant drops every cached view derived from the tenant row.
func (h *Handler) invalidateTenant(ctx context.Context, t *tenants.Tenant) {
	if h.Cache == nil || t == nil {
		return
	}
	if err := h.Cache.Delete(ctx, middleware.PublicKeyCacheKey(t.PublicKey)); err != nil {
		h.Log.Warn("cache invalidate failed", zap.String("tenant_id", t.ID), zap.Error(err))
	}
}

// Me returns the signed-in user, their tenant and what the tenant may do.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := users.Get(ctx, h.DB, c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	resp := MeResponse{User: buildUserDTO(u), Access: AccessDTO{Capabilities: []string{}}}
	if tid := u.TenantIDValue(); tid != "" {
		t, err := tenants.Get(ctx, h.DB, tid)
		if err != nil {
			apierr.Abort(c, h.Log, err, "Failed to load tenant")
			return
		}
		resp.Tenant = buildTenantDTO(t, h.AppURL)
		resp.Access = buildAccessDTO(access.ComputePolicy(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, buildTenantDTO(middleware.TenantFrom(c), h.AppURL))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var in tenants.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	t := middleware.TenantFrom(c)
	updated, err := tenants.UpdateProfile(c.Request.Context(), h.DB, t.ID, in)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to update profile")
		return
	}
	h.invalidateTenant(c.Request.Context(), t)
	c.JSON(http.StatusOK, buildTenantDTO(updated, h.AppURL))
}

func (h *Handler) UpdateBranding(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	t := middleware.TenantFrom(c)
	branding, err := tenants.UpdateBranding(c.Request.Context(), h.DB, t.ID, patch)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to update branding")
		return
	}
	h.invalidateTenant(c.Request.Context(), t)
	c.JSON(http.StatusOK, gin.H{"branding": branding})
}

func (h *Handler) AdvanceOnboarding(c *gin.Context) {
	var body struct {
		To              string `json:"to" binding:"required"`
		ExpectedVersion *int   `json:"expected_version" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and expected_version are required"})
		return
	}
	to, ok := tenants.ParseOnboardingStatus(body.To)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown onboarding status"})
		return
	}

	ctx := c.Request.Context()
	tenantID := c.GetString(middleware.CtxTenantID)
	change, err := tenants.AdvanceOnboarding(ctx, h.DB, tenantID, to, *body.ExpectedVersion)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to advance onboarding")
		return
	}
	if err := h.Events.Publish(ctx, events.TenantOnboardingAdvanced, tenantID, change); err != nil {
		h.Log.Warn("publish onboarding change failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	c.JSON(http.StatusOK, change)
}

// RotateSecretKey issues a new secret key. The plaintext is shown once.
func (h *Handler) RotateSecretKey(c *gin.Context) {
	t := middleware.TenantFrom(c)
	sk, err := tenants.RotateSecretKey(c.Request.Context(), h.DB, t.ID, tenants.KeyMode(config.IsProduction()))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to rotate key")
		return
	}
	h.invalidateTenant(c.Request.Context(), t)
	h.Log.Info("secret key rotated", zap.String("tenant_id", t.ID))
	c.JSON(http.StatusOK, gin.H{"secret_key": sk, "secret_key_prefix": tenants.SecretKeyPrefix(sk)})
}

func (h *Handler) ListSecrets(c *gin.Context) {
	names, err := tenants.ListSecretNames(c.Request.Context(), h.DB, c.GetString(middleware.CtxTenantID))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to list secrets")
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}

func (h *Handler) PutSecret(c *gin.Context) {
	var body struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	err := tenants.PutSecret(c.Request.Context(), h.DB, h.Secrets, c.GetString(middleware.CtxTenantID), c.Param("name"), body.Value)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to store secret")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetSecret(c *gin.Context) {
	v, err := tenants.GetSecret(c.Request.Context(), h.DB, h.Secrets, c.GetString(middleware.CtxTenantID), c.Param("name"))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to read secret")
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "value": v})
}

func (h *Handler) DeleteSecret(c *gin.Context) {
	if err := tenants.DeleteSecret(c.Request.Context(), h.DB, c.GetString(middleware.CtxTenantID), c.Param("name")); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to delete secret")
		return
	}
	c.Status(http.StatusNoContent)
}

// ConnectStripe creates the tenant's connected account on first use and
// returns a fresh onboarding link.
func (h *Handler) ConnectStripe(c *gin.Context) {
	ctx := c.Request.Context()
	t := middleware.TenantFrom(c)

	accountID := ""
	if t.StripeAccountID != nil {
		accountID = *t.StripeAccountID
	}
	if accountID == "" {
		id, err := h.Stripe.CreateConnectedAccount(ctx, t.Email, t.ID)
		if err != nil {
			apierr.Abort(c, h.Log, err, "Failed to create Stripe account")
			return
		}
		if err := tenants.SetStripeAccount(ctx, h.DB, t.ID, id); err != nil {
			apierr.Abort(c, h.Log, err, "Failed to save Stripe account")
			return
		}
		h.invalidateTenant(ctx, t)
		accountID = id
	}

	back := h.AppURL + "/dashboard/payments"
	url, err := h.Stripe.OnboardingLink(ctx, accountID, back+"?refresh=1", back+"?connected=1")
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to create onboarding link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "account_id": accountID})
}

func (h *Handler) Payments(c *gin.Context) {
	out, err := billing.ListForTenant(c.Request.Context(), h.DB, c.GetString(middleware.CtxTenantID), 0)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load payments")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Staff(c *gin.Context) {
	list, err := users.ListForTenant(c.Request.Context(), h.DB, c.GetString(middleware.CtxTenantID))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load users")
		return
	}
	out := make([]UserDTO, 0, len(list))
	for i := range list {
		out = append(out, buildUserDTO(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}
