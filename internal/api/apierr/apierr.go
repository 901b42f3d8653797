// Package apierr maps domain errors onto HTTP replies.
package apierr

import (
	"errors"
	"net/http"

	"booking-app/internal/domain/agent"
	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/catalog"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/domain/users"
	"booking-app/internal/infra/agentruntime"
	"booking-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statuses = []struct {
	err    error
	status int
}{
	{booking.ErrCapacityExceeded, http.StatusConflict},
	{booking.ErrSlotUnavailable, http.StatusConflict},
	{booking.ErrDateUnavailable, http.StatusConflict},
	{booking.ErrAlreadyCanceled, http.StatusConflict},
	{booking.ErrNotPending, http.StatusConflict},
	{tenants.ErrVersionConflict, http.StatusConflict},
	{agent.ErrProposalDecided, http.StatusConflict},
	{users.ErrEmailTaken, http.StatusConflict},

	{booking.ErrBookingNotFound, http.StatusNotFound},
	{catalog.ErrNotFound, http.StatusNotFound},
	{tenants.ErrTenantNotFound, http.StatusNotFound},
	{tenants.ErrSecretNotFound, http.StatusNotFound},
	{billing.ErrPaymentNotFound, http.StatusNotFound},
	{agent.ErrProposalNotFound, http.StatusNotFound},
	{agent.ErrUnknownTool, http.StatusNotFound},

	{agent.ErrProposalExpired, http.StatusGone},

	{tenants.ErrInvalidTransition, http.StatusUnprocessableEntity},
	{booking.ErrOutsideAvailability, http.StatusUnprocessableEntity},
	{booking.ErrBlackoutDate, http.StatusUnprocessableEntity},
	{booking.ErrInPast, http.StatusUnprocessableEntity},
	{booking.ErrItemInactive, http.StatusUnprocessableEntity},

	{booking.ErrInvalidEmail, http.StatusBadRequest},
	{booking.ErrInvalidDate, http.StatusBadRequest},
	{catalog.ErrInvalidInput, http.StatusBadRequest},
	{billing.ErrUnknownKind, http.StatusBadRequest},
	{tenants.ErrInvalidTimezone, http.StatusBadRequest},
	{tenants.ErrInvalidCurrency, http.StatusBadRequest},
	{tenants.ErrInvalidStatus, http.StatusBadRequest},
	{tenants.ErrInvalidCommission, http.StatusBadRequest},
	{agent.ErrBadArgs, http.StatusBadRequest},
	{users.ErrWeakPassword, http.StatusBadRequest},

	{billing.ErrPaymentsDisabled, http.StatusPaymentRequired},
	{stripe.ErrNotConfigured, http.StatusServiceUnavailable},
	{agentruntime.ErrNotConfigured, http.StatusServiceUnavailable},
}

// Status returns the HTTP status for err, 500 when it is not a known domain error.
func Status(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Abort replies with the mapped status. Internal errors are logged and
// hidden behind msg.
func Abort(c *gin.Context, log *zap.Logger, err error, msg string) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		log.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	body := gin.H{"error": err.Error()}
	if booking.IsConflict(err) {
		body["code"] = conflictCode(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func conflictCode(err error) string {
	switch {
	case errors.Is(err, booking.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, booking.ErrSlotUnavailable):
		return "slot_unavailable"
	default:
		return "date_unavailable"
	}
}
