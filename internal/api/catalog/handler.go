package catalog

import (
	"net/http"

	"booking-app/internal/api/apierr"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/catalog"
	"booking-app/internal/infra/cache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler serves the tenant dashboard's catalog editor. Every write drops
// the cached storefront.
type Handler struct {
	DB    *gorm.DB
	Cache cache.Cache
	Log   *zap.Logger
}

func NewHandler(db *gorm.DB, c cache.Cache, log *zap.Logger) *Handler {
	return &Handler{DB: db, Cache: c, Log: log}
}

func (h *Handler) invalidate(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantID)
	if err := h.Cache.Delete(c.Request.Context(), catalog.StorefrontCacheKey(tenantID)); err != nil {
		h.Log.Warn("storefront cache invalidation failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(middleware.CtxTenantID)
}

/* ---------- segments ---------- */

func (h *Handler) ListSegments(c *gin.Context) {
	out, err := catalog.ListSegments(c.Request.Context(), h.DB, tenantID(c), false)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load segments")
		return
	}
	c.JSON(http.StatusOK, out)
}

type segmentInput struct {
	Name      string `json:"name" binding:"required"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"sort_order"`
	Active    *bool  `json:"active"`
}

func (h *Handler) CreateSegment(c *gin.Context) {
	var in segmentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := catalog.Segment{Name: in.Name, Slug: in.Slug, SortOrder: in.SortOrder, Active: in.Active == nil || *in.Active}
	if err := catalog.CreateSegment(c.Request.Context(), h.DB, tenantID(c), &s); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to create segment")
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) UpdateSegment(c *gin.Context) {
	var in struct {
		Name      *string `json:"name"`
		SortOrder *int    `json:"sort_order"`
		Active    *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updates := map[string]interface{}{}
	if in.Name != nil && *in.Name != "" {
		updates["name"] = *in.Name
	}
	if in.SortOrder != nil {
		updates["sort_order"] = *in.SortOrder
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	if err := catalog.UpdateSegment(c.Request.Context(), h.DB, tenantID(c), c.Param("id"), updates); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to update segment")
		return
	}
	h.invalidate(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteSegment(c *gin.Context) {
	if err := catalog.DeleteSegment(c.Request.Context(), h.DB, tenantID(c), c.Param("id")); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to delete segment")
		return
	}
	h.invalidate(c)
	c.Status(http.StatusNoContent)
}

/* ---------- tiers ---------- */

type tierInput struct {
	SegmentID    string   `json:"segment_id"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	Description  string   `json:"description"`
	PriceCents   int64    `json:"price_cents"`
	DepositCents *int64   `json:"deposit_cents"`
	Features     []string `json:"features"`
	SortOrder    int      `json:"sort_order"`
	Active       *bool    `json:"active"`
}

func (in tierInput) apply(t *catalog.Tier) {
	if in.SegmentID != "" {
		t.SegmentID = in.SegmentID
	}
	if in.Name != "" {
		t.Name = in.Name
	}
	if in.Slug != "" {
		t.Slug = in.Slug
	}
	t.Description = in.Description
	t.PriceCents = in.PriceCents
	t.DepositCents = in.DepositCents
	t.Features = in.Features
	t.SortOrder = in.SortOrder
	if in.Active != nil {
		t.Active = *in.Active
	}
}

func (h *Handler) CreateTier(c *gin.Context) {
	var in tierInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t := catalog.Tier{Active: true}
	in.apply(&t)
	if err := catalog.CreateTier(c.Request.Context(), h.DB, tenantID(c), &t); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to create tier")
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTier(c *gin.Context) {
	var in tierInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := catalog.UpdateTier(c.Request.Context(), h.DB, tenantID(c), c.Param("id"), in.apply)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to update tier")
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTier(c *gin.Context) {
	if err := catalog.DeleteTier(c.Request.Context(), h.DB, tenantID(c), c.Param("id")); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to delete tier")
		return
	}
	h.invalidate(c)
	c.Status(http.StatusNoContent)
}

/* ---------- services ---------- */

type serviceInput struct {
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
	PriceCents      int64  `json:"price_cents"`
	MaxPerDay       int    `json:"max_per_day"`
	SortOrder       int    `json:"sort_order"`
	Active          *bool  `json:"active"`
}

func (in serviceInput) apply(s *catalog.Service) {
	if in.Name != "" {
		s.Name = in.Name
	}
	if in.Slug != "" {
		s.Slug = in.Slug
	}
	s.Description = in.Description
	s.DurationMinutes = in.DurationMinutes
	s.BufferMinutes = in.BufferMinutes
	s.PriceCents = in.PriceCents
	s.MaxPerDay = in.MaxPerDay
	s.SortOrder = in.SortOrder
	if in.Active != nil {
		s.Active = *in.Active
	}
}

func (h *Handler) ListServices(c *gin.Context) {
	out, err := catalog.ListServices(c.Request.Context(), h.DB, tenantID(c), false)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load services")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateService(c *gin.Context) {
	var in serviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := catalog.Service{Active: true}
	in.apply(&s)
	if err := catalog.CreateService(c.Request.Context(), h.DB, tenantID(c), &s); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to create service")
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) UpdateService(c *gin.Context) {
	var in serviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := catalog.UpdateService(c.Request.Context(), h.DB, tenantID(c), c.Param("id"), in.apply)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to update service")
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusOK, s)
}

func (h *Handler) DeactivateService(c *gin.Context) {
	if err := catalog.DeactivateService(c.Request.Context(), h.DB, tenantID(c), c.Param("id")); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to deactivate service")
		return
	}
	h.invalidate(c)
	c.Status(http.StatusNoContent)
}

/* ---------- availability ---------- */

func (h *Handler) ListAvailability(c *gin.Context) {
	rules, err := catalog.ListAvailabilityRules(c.Request.Context(), h.DB, tenantID(c))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load availability")
		return
	}
	blackouts, err := catalog.ListBlackouts(c.Request.Context(), h.DB, tenantID(c))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load blackouts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "blackouts": blackouts})
}

// ReplaceAvailability swaps the weekly rules for one service, or the
// tenant-wide rules when service_id is omitted.
func (h *Handler) ReplaceAvailability(c *gin.Context) {
	var in struct {
		ServiceID *string                    `json:"service_id"`
		Rules     []catalog.AvailabilityRule `json:"rules"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := catalog.ReplaceAvailability(c.Request.Context(), h.DB, tenantID(c), in.ServiceID, in.Rules); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to save availability")
		return
	}
	h.invalidate(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddBlackout(c *gin.Context) {
	var in struct {
		Date   string `json:"date" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b := catalog.BlackoutDate{Date: in.Date, Reason: in.Reason}
	if err := catalog.AddBlackout(c.Request.Context(), h.DB, tenantID(c), &b); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to add blackout")
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) DeleteBlackout(c *gin.Context) {
	if err := catalog.DeleteBlackout(c.Request.Context(), h.DB, tenantID(c), c.Param("id")); err != nil {
		apierr.Abort(c, h.Log, err, "Failed to delete blackout")
		return
	}
	c.Status(http.StatusNoContent)
}
