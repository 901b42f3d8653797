package booking

import "errors"

var (
	ErrCapacityExceeded    = errors.New("daily capacity reached for this service")
	ErrSlotUnavailable     = errors.New("requested slot is not available")
	ErrDateUnavailable     = errors.New("date is already booked")
	ErrOutsideAvailability = errors.New("requested time is outside availability")
	ErrBlackoutDate        = errors.New("date is blacked out")
	ErrInPast              = errors.New("requested time is in the past")
	ErrItemInactive        = errors.New("service or tier is not bookable")
	ErrInvalidEmail        = errors.New("invalid customer email")
	ErrInvalidDate         = errors.New("invalid date, expected YYYY-MM-DD")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrAlreadyCanceled     = errors.New("booking is already canceled")
	ErrNotPending          = errors.New("booking is not pending")
)

// IsConflict reports whether err means the requested slot or date cannot be sold.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrSlotUnavailable) ||
		errors.Is(err, ErrDateUnavailable)
}
