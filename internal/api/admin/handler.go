package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"booking-app/internal/api/apierr"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/cache"
	stripeinfra "booking-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminTenant struct {
	ID                string          `json:"id"`
	Slug              string          `json:"slug"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Status            string          `json:"status"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	ChargesEnabled    bool            `json:"charges_enabled"`
	OnboardingStatus  string          `json:"onboarding_status"`
	CreatedAt         string          `json:"created_at"`
}

type AdminPayment struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenant_id"`
	CustomerEmail   string  `json:"customer_email"`
	Kind            string  `json:"kind"`
	Amount          float64 `json:"amount"`
	ApplicationFee  float64 `json:"application_fee"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	StripeSessionID string  `json:"stripe_session_id"`
	BookingID       *string `json:"booking_id,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type AdminStats struct {
	TotalTenants      int64            `json:"total_tenants"`
	ActiveTenants     int64            `json:"active_tenants"`
	ConfirmedBookings int64            `json:"confirmed_bookings"`
	PaidVolumeCents   int64            `json:"paid_volume_cents"`
	FeesCents         int64            `json:"fees_cents"`
	RecentFeesCents   int64            `json:"recent_fees_cents"`
	PaymentsByStatus  map[string]int64 `json:"payments_by_status"`
}

type Handler struct {
	DB    *gorm.DB
	Cache cache.Cache
	Log   *zap.Logger
}

func NewHandler(db *gorm.DB, c cache.Cache, log *zap.Logger) *Handler {
	return &Handler{DB: db, Cache: c, Log: log}
}

func (h *Handler) ListTenants(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	list, total, err := tenants.List(c.Request.Context(), h.DB, c.Query("status"), limit, offset)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load tenants")
		return
	}

	out := make([]AdminTenant, 0, len(list))
	for _, t := range list {
		out = append(out, AdminTenant{
			ID:                t.ID,
			Slug:              t.Slug,
			Name:              t.Name,
			Email:             t.Email,
			Status:            t.Status,
			CommissionPercent: t.CommissionPercent,
			ChargesEnabled:    t.ChargesEnabled,
			OnboardingStatus:  string(t.OnboardingStatus),
			CreatedAt:         t.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "total": total})
}

// SetStatus suspends or reactivates a tenant. Suspension takes effect on the
// storefront at once because the cached key lookup is dropped.
func (h *Handler) SetStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := tenants.SetStatus(ctx, h.DB, id, body.Status); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to update tenant")
		return
	}
	h.invalidate(ctx, id)
	h.Log.Info("tenant status changed", zap.String("tenant_id", id), zap.String("status", body.Status))
	c.JSON(http.StatusOK, gin.H{"id": id, "status": body.Status})
}

func (h *Handler) SetCommission(c *gin.Context) {
	var body struct {
		Percent decimal.Decimal `json:"commission_percent"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "commission_percent must be a number"})
		return
	}
	id := c.Param("id")
	if err := tenants.SetCommission(c.Request.Context(), h.DB, id, body.Percent); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to update commission")
		return
	}
	h.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"id": id, "commission_percent": body.Percent})
}

func (h *Handler) invalidate(ctx context.Context, tenantID string) {
	if h.Cache == nil {
		return
	}
	t, err := tenants.Get(ctx, h.DB, tenantID)
	if err != nil {
		h.Log.Warn("reload tenant for cache invalidation", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}
	if err := h.Cache.Delete(ctx, middleware.PublicKeyCacheKey(t.PublicKey)); err != nil {
		h.Log.Warn("cache invalidate failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func (h *Handler) ListPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	payments, err := billing.ListAll(c.Request.Context(), h.DB, c.Query("status"), limit)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load payments")
		return
	}

	result := make([]AdminPayment, 0, len(payments))
	for _, p := range payments {
		result = append(result, AdminPayment{
			ID:              p.ID,
			TenantID:        p.TenantID,
			CustomerEmail:   p.CustomerEmail,
			Kind:            p.Kind,
			Amount:          float64(p.AmountCents) / 100,
			ApplicationFee:  float64(p.ApplicationFeeCents) / 100,
			Currency:        p.Currency,
			Status:          p.Status,
			StripeSessionID: p.StripeSessionID,
			BookingID:       p.BookingID,
			CreatedAt:       p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Stats(c *gin.Context) {
	db := h.DB.WithContext(c.Request.Context())
	var stats AdminStats

	if err := db.Model(&tenants.Tenant{}).Count(&stats.TotalTenants).Error; err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load stats")
		return
	}
	db.Model(&tenants.Tenant{}).Where("status = ?", tenants.StatusActive).Count(&stats.ActiveTenants)
	db.Model(&booking.Booking{}).Where("status = ?", booking.StatusConfirmed).Count(&stats.ConfirmedBookings)

	db.Model(&billing.Payment{}).
		Where("status = ?", stripeinfra.PaymentPaid).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&stats.PaidVolumeCents)
	db.Model(&billing.Payment{}).
		Where("status = ?", stripeinfra.PaymentPaid).
		Select("COALESCE(SUM(application_fee_cents), 0)").Scan(&stats.FeesCents)

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	db.Model(&billing.Payment{}).
		Where("status = ? AND created_at >= ?", stripeinfra.PaymentPaid, thirtyDaysAgo).
		Select("COALESCE(SUM(application_fee_cents), 0)").Scan(&stats.RecentFeesCents)

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	db.Model(&billing.Payment{}).
		Select("status, COUNT(id) as count").
		Group("status").
		Scan(&counts)

	stats.PaymentsByStatus = map[string]int64{}
	for _, sc := range counts {
		stats.PaymentsByStatus[sc.Status] = sc.Count
	}
	c.JSON(http.StatusOK, stats)
}
