package bookings

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"booking-app/internal/api/apierr"
	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/booking"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	DB       *gorm.DB
	Bookings *booking.Service
	Log      *zap.Logger
}

func NewHandler(db *gorm.DB, bookings *booking.Service, log *zap.Logger) *Handler {
	return &Handler{DB: db, Bookings: bookings, Log: log}
}

func filterFrom(c *gin.Context) booking.Filter {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return booking.Filter{
		Status:    booking.Status(c.Query("status")),
		Type:      booking.Type(c.Query("type")),
		ServiceID: c.Query("service_id"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		Limit:     limit,
		Offset:    offset,
	}
}

func (h *Handler) List(c *gin.Context) {
	items, total, err := booking.List(c.Request.Context(), h.DB, c.GetString(middleware.CtxTenantID), filterFrom(c))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load bookings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h *Handler) Get(c *gin.Context) {
	b, err := booking.Get(c.Request.Context(), h.DB, c.GetString(middleware.CtxTenantID), c.Param("id"))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load booking")
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) Cancel(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	b, err := h.Bookings.Cancel(c.Request.Context(), c.GetString(middleware.CtxTenantID), c.Param("id"), body.Reason)
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to cancel booking")
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) Confirm(c *gin.Context) {
	b, err := h.Bookings.Confirm(c.Request.Context(), c.GetString(middleware.CtxTenantID), c.Param("id"))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to confirm booking")
		return
	}
	c.JSON(http.StatusOK, b)
}

type manualInput struct {
	Kind       booking.Type          `json:"kind" binding:"required"`
	ItemID     string                `json:"item_id" binding:"required"`
	Start      *time.Time            `json:"start"`
	Date       string                `json:"date"`
	Customer   booking.CustomerInput `json:"customer"`
	TotalCents *int64                `json:"total_cents"`
	Status     booking.Status        `json:"status"`
	Notes      string                `json:"notes"`
}

// Create records a booking taken outside the storefront (phone, walk-in).
// It goes through the same locked capacity check as paid bookings.
func (h *Handler) Create(c *gin.Context) {
	var in manualInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Status == "" {
		in.Status = booking.StatusPending
	}
	if in.Status != booking.StatusPending && in.Status != booking.StatusConfirmed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be PENDING or CONFIRMED"})
		return
	}

	t := middleware.TenantFrom(c)
	ctx := c.Request.Context()
	var (
		b   *booking.Booking
		err error
	)
	switch in.Kind {
	case booking.TypeTimeslot:
		if in.Start == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start is required for TIMESLOT bookings"})
			return
		}
		if _, _, err = h.Bookings.CheckTimeslot(ctx, t, in.ItemID, *in.Start); err != nil {
			break
		}
		b, _, err = h.Bookings.CreateTimeslotBooking(ctx, booking.TimeslotBooking{
			TenantID:   t.ID,
			ServiceID:  in.ItemID,
			Start:      *in.Start,
			Location:   t.Location(),
			Customer:   in.Customer,
			TotalCents: in.TotalCents,
			Currency:   t.Currency,
			Status:     in.Status,
			Notes:      in.Notes,
		})
	case booking.TypeDate:
		if _, err = h.Bookings.CheckDate(ctx, t, in.ItemID, in.Date); err != nil {
			break
		}
		b, _, err = h.Bookings.CreateDateBooking(ctx, booking.DateBooking{
			TenantID:   t.ID,
			TierID:     in.ItemID,
			Date:       in.Date,
			Customer:   in.Customer,
			TotalCents: in.TotalCents,
			Currency:   t.Currency,
			Status:     in.Status,
			Notes:      in.Notes,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be TIMESLOT or DATE"})
		return
	}
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to create booking")
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) Export(c *gin.Context) {
	t := middleware.TenantFrom(c)
	rows, err := booking.ListForExport(c.Request.Context(), h.DB, t.ID, filterFrom(c))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load bookings")
		return
	}
	body, err := booking.ExportXLSX(rows, t.Location())
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to build export")
		return
	}
	name := fmt.Sprintf("bookings-%s-%s.xlsx", t.Slug, time.Now().In(t.Location()).Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, body)
}

func (h *Handler) Customers(c *gin.Context) {
	out, err := booking.ListCustomers(c.Request.Context(), h.DB, c.GetString(middleware.CtxTenantID))
	if err != nil {
		apierr.Abort(c, h.Log, err, "Failed to load customers")
		return
	}
	c.JSON(http.StatusOK, out)
}
