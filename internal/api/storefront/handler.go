package storefront

import (
	"context"
	"net/http"

	"booking-app/internal/api/apierr"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/access"
	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/catalog"
	"booking-app/internal/infra/cache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler serves the public storefront. The tenant comes from the
// publishable key middleware.
type Handler struct {
	DB       *gorm.DB
	Cache    cache.Cache
	Bookings *booking.Service
	Payments *billing.Payments
	Log      *zap.Logger
}

func NewHandler(db *gorm.DB, c cache.Cache, bookings *booking.Service, payments *billing.Payments, log *zap.Logger) *Handler {
	return &Handler{DB: db, Cache: c, Bookings: bookings, Payments: payments, Log: log}
}

func (h *Handler) Profile(c *gin.Context) {
	t := middleware.TenantFrom(c)
	policy := access.ComputePolicy(t)
	c.JSON(http.StatusOK, gin.H{
		"name":        t.Name,
		"slug":        t.Slug,
		"timezone":    t.Timezone,
		"currency":    t.Currency,
		"branding":    t.Branding,
		"public_mode": policy.PublicMode,
	})
}

func (h *Handler) Catalog(c *gin.Context) {
	t := middleware.TenantFrom(c)
	sf, err := cache.Fetch(c.Request.Context(), h.Cache, catalog.StorefrontCacheKey(t.ID), catalog.StorefrontTTL,
		func(ctx context.Context) (*catalog.Storefront, error) {
			return catalog.LoadStorefront(ctx, h.DB, t.ID)
		})
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load catalog")
		return
	}
	c.JSON(http.StatusOK, sf)
}

// GET /services/:id/availability?date=YYYY-MM-DD
func (h *Handler) Availability(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}
	out, err := h.Bookings.Availability(c.Request.Context(), middleware.TenantFrom(c), c.Param("id"), date)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to compute availability")
		return
	}
	c.JSON(http.StatusOK, out)
}

// Checkout re-checks capacity and opens a Stripe session for the item.
func (h *Handler) Checkout(c *gin.Context) {
	var in billing.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t := middleware.TenantFrom(c)
	res, err := h.Payments.StartCheckout(c.Request.Context(), t, in)
	if err != nil {
		if booking.IsConflict(err) {
			h.Log.Info("checkout refused", zap.String("tenant_id", t.ID), zap.String("item_id", in.ItemID), zap.Error(err))
		}
		apierr.Abort(c, h.Log, err, "Failed to start checkout")
		return
	}
	c.JSON(http.StatusCreated, res)
}
