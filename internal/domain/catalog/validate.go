package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("catalog item not found")
	ErrInvalidInput = errors.New("invalid catalog input")
)

const maxDurationMinutes = 12 * 60

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func (s *Service) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case s.DurationMinutes <= 0 || s.DurationMinutes > maxDurationMinutes:
		return fmt.Errorf("%w: duration_minutes must be between 1 and %d", ErrInvalidInput, maxDurationMinutes)
	case s.BufferMinutes < 0:
		return fmt.Errorf("%w: buffer_minutes cannot be negative", ErrInvalidInput)
	case s.PriceCents < 0:
		return fmt.Errorf("%w: price_cents cannot be negative", ErrInvalidInput)
	case s.MaxPerDay < 0:
		return fmt.Errorf("%w: max_per_day cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (t *Tier) Validate() error {
	switch {
	case strings.TrimSpace(t.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case t.PriceCents < 0:
		return fmt.Errorf("%w: price_cents cannot be negative", ErrInvalidInput)
	case t.DepositCents != nil && (*t.DepositCents < 0 || *t.DepositCents > t.PriceCents):
		return fmt.Errorf("%w: deposit_cents must be between 0 and price_cents", ErrInvalidInput)
	}
	return nil
}

func (r *AvailabilityRule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday must be 0-6", ErrInvalidInput)
	}
	start, err := ParseClock(r.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(r.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}
	return nil
}
