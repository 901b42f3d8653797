package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking-app/internal/domain/catalog"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/events"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dateLockResource namespaces DATE locks away from service ids.
const dateLockResource = "date"

type Service struct {
	db     *gorm.DB
	events events.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{Log: log}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, events: pub, log: log, now: time.Now}
}

type DayAvailability struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Slots     []Slot `json:"slots"`
	// -1 when the service has no daily cap
	Remaining int `json:"remaining"`
}

// Availability lists the open slots for a service on a tenant calendar day.
func (s *Service) Availability(ctx context.Context, t *tenants.Tenant, serviceID, date string) (*DayAvailability, error) {
	loc := t.Location()
	day, err := ParseDay(date, loc)
	if err != nil {
		return nil, err
	}
	svc, err := s.bookableService(ctx, t.ID, serviceID)
	if err != nil {
		return nil, err
	}

	out := &DayAvailability{ServiceID: svc.ID, Date: date, Slots: []Slot{}}

	blocked, err := catalog.IsBlackout(ctx, s.db, t.ID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return out, nil
	}

	slots, booked, err := s.daySlots(ctx, t.ID, svc, day)
	if err != nil {
		return nil, err
	}
	out.Remaining = Remaining(svc.MaxPerDay, booked)
	if out.Remaining != 0 {
		out.Slots = append(out.Slots, slots...)
	}
	return out, nil
}

// CheckTimeslot is the checkout-time gate. It runs without the advisory lock;
// CreateTimeslotBooking repeats the capacity and overlap checks under it.
func (s *Service) CheckTimeslot(ctx context.Context, t *tenants.Tenant, serviceID string, start time.Time) (*catalog.Service, Slot, error) {
	loc := t.Location()
	svc, err := s.bookableService(ctx, t.ID, serviceID)
	if err != nil {
		return nil, Slot{}, err
	}
	if start.Before(s.now()) {
		return nil, Slot{}, ErrInPast
	}

	date := DayOf(start, loc)
	blocked, err := catalog.IsBlackout(ctx, s.db, t.ID, date)
	if err != nil {
		return nil, Slot{}, err
	}
	if blocked {
		return nil, Slot{}, ErrBlackoutDate
	}

	day, _ := ParseDay(date, loc)
	slots, booked, err := s.daySlots(ctx, t.ID, svc, day)
	if err != nil {
		return nil, Slot{}, err
	}
	if svc.HasDailyCap() && booked >= int64(svc.MaxPerDay) {
		return nil, Slot{}, ErrCapacityExceeded
	}
	slot, ok := FindSlot(slots, start)
	if !ok {
		return nil, Slot{}, ErrSlotUnavailable
	}
	return svc, slot, nil
}

// CheckDate is the checkout-time gate for whole-day tier bookings.
func (s *Service) CheckDate(ctx context.Context, t *tenants.Tenant, tierID, date string) (*catalog.Tier, error) {
	loc := t.Location()
	if _, err := ParseDay(date, loc); err != nil {
		return nil, err
	}
	if date < DayOf(s.now(), loc) {
		return nil, ErrInPast
	}

	tier, err := catalog.GetTier(ctx, s.db, t.ID, tierID)
	if err != nil {
		return nil, err
	}
	if !tier.Active {
		return nil, ErrItemInactive
	}

	blocked, err := catalog.IsBlackout(ctx, s.db, t.ID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlackoutDate
	}

	n, err := countDateBookings(ctx, s.db, t.ID, date)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrDateUnavailable
	}
	return tier, nil
}

type TimeslotBooking struct {
	TenantID  string
	ServiceID string
	Start     time.Time
	Location  *time.Location
	Customer  CustomerInput

	// Price captured when the checkout session was opened. Nil charges the
	// current service price.
	TotalCents       *int64
	PlatformFeeCents int64
	Currency         string

	CheckoutSessionID string
	PaymentIntentID   string
	Status            Status
	Notes             string
}

// CreateTimeslotBooking writes a TIMESLOT booking while holding the
// per-(tenant, service, date) advisory lock. The returned bool is false when
// the checkout session already produced a booking.
func (s *Service) CreateTimeslotBooking(ctx context.Context, in TimeslotBooking) (*Booking, bool, error) {
	if err := in.Customer.Validate(); err != nil {
		return nil, false, err
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	status := in.Status
	if status == "" {
		status = StatusConfirmed
	}
	date := DayOf(in.Start, loc)

	var (
		result  *Booking
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDay(ctx, tx, LockKey(in.TenantID, in.ServiceID, date)); err != nil {
			return fmt.Errorf("acquire booking lock: %w", err)
		}

		if in.CheckoutSessionID != "" {
			existing, err := findBySession(ctx, tx, in.TenantID, in.CheckoutSessionID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}
		}

		var svc catalog.Service
		if err := tx.Where("id = ? AND tenant_id = ?", in.ServiceID, in.TenantID).First(&svc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return catalog.ErrNotFound
			}
			return err
		}

		booked, err := countTimeslotBookings(ctx, tx, in.TenantID, svc.ID, date)
		if err != nil {
			return err
		}
		if svc.HasDailyCap() && booked >= int64(svc.MaxPerDay) {
			return ErrCapacityExceeded
		}

		end := in.Start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
		buffer := time.Duration(svc.BufferMinutes) * time.Minute
		var overlapping int64
		err = tx.Model(&Booking{}).
			Where("tenant_id = ? AND service_id = ? AND date = ? AND type = ? AND status <> ?",
				in.TenantID, svc.ID, date, TypeTimeslot, StatusCanceled).
			Where("start_time < ? AND end_time > ?", end.Add(buffer), in.Start.Add(-buffer)).
			Count(&overlapping).Error
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrSlotUnavailable
		}

		customer, err := upsertCustomer(ctx, tx, in.TenantID, in.Customer)
		if err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}

		total := svc.PriceCents
		if in.TotalCents != nil {
			total = *in.TotalCents
		}
		start := in.Start.UTC()
		endUTC := end.UTC()
		b := &Booking{
			TenantID:          in.TenantID,
			CustomerID:        customer.ID,
			Type:              TypeTimeslot,
			Status:            status,
			ServiceID:         &svc.ID,
			Date:              date,
			StartTime:         &start,
			EndTime:           &endUTC,
			TotalCents:        total,
			PlatformFeeCents:  in.PlatformFeeCents,
			Currency:          in.Currency,
			CheckoutSessionID: optional(in.CheckoutSessionID),
			PaymentIntentID:   optional(in.PaymentIntentID),
			Notes:             in.Notes,
		}
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		b.Customer = customer
		result, created = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.publish(ctx, result)
	}
	return result, created, nil
}

type DateBooking struct {
	TenantID string
	TierID   string
	Date     string
	Customer CustomerInput

	TotalCents       *int64
	PlatformFeeCents int64
	Currency         string

	CheckoutSessionID string
	PaymentIntentID   string
	Status            Status
	Notes             string
}

// CreateDateBooking writes a whole-day booking. A tenant sells each calendar
// day at most once, so the lock is keyed on (tenant, date).
func (s *Service) CreateDateBooking(ctx context.Context, in DateBooking) (*Booking, bool, error) {
	if err := in.Customer.Validate(); err != nil {
		return nil, false, err
	}
	if _, err := ParseDay(in.Date, time.UTC); err != nil {
		return nil, false, err
	}
	status := in.Status
	if status == "" {
		status = StatusConfirmed
	}

	var (
		result  *Booking
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDay(ctx, tx, LockKey(in.TenantID, dateLockResource, in.Date)); err != nil {
			return fmt.Errorf("acquire booking lock: %w", err)
		}

		if in.CheckoutSessionID != "" {
			existing, err := findBySession(ctx, tx, in.TenantID, in.CheckoutSessionID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}
		}

		var tier catalog.Tier
		if err := tx.Where("id = ? AND tenant_id = ?", in.TierID, in.TenantID).First(&tier).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return catalog.ErrNotFound
			}
			return err
		}

		taken, err := countDateBookings(ctx, tx, in.TenantID, in.Date)
		if err != nil {
			return err
		}
		if taken > 0 {
			return ErrDateUnavailable
		}

		customer, err := upsertCustomer(ctx, tx, in.TenantID, in.Customer)
		if err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}

		total := tier.ChargeCents()
		if in.TotalCents != nil {
			total = *in.TotalCents
		}
		b := &Booking{
			TenantID:          in.TenantID,
			CustomerID:        customer.ID,
			Type:              TypeDate,
			Status:            status,
			TierID:            &tier.ID,
			Date:              in.Date,
			TotalCents:        total,
			PlatformFeeCents:  in.PlatformFeeCents,
			Currency:          in.Currency,
			CheckoutSessionID: optional(in.CheckoutSessionID),
			PaymentIntentID:   optional(in.PaymentIntentID),
			Notes:             in.Notes,
		}
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		b.Customer = customer
		result, created = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.publish(ctx, result)
	}
	return result, created, nil
}

// Cancel frees the booking's capacity.
func (s *Service) Cancel(ctx context.Context, tenantID, id, reason string) (*Booking, error) {
	var b Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Customer").
			Where("id = ? AND tenant_id = ?", id, tenantID).
			First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if b.Status == StatusCanceled {
			return ErrAlreadyCanceled
		}

		now := s.now().UTC()
		if err := tx.Model(&b).Updates(map[string]interface{}{
			"status":        StatusCanceled,
			"cancel_reason": reason,
			"canceled_at":   now,
		}).Error; err != nil {
			return err
		}
		b.Status = StatusCanceled
		b.CancelReason = reason
		b.CanceledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.BookingCanceled, &b)
	return &b, nil
}

// Confirm promotes a PENDING booking.
func (s *Service) Confirm(ctx context.Context, tenantID, id string) (*Booking, error) {
	res := s.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, StatusPending).
		Update("status", StatusConfirmed)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := Get(ctx, s.db, tenantID, id); err != nil {
			return nil, err
		}
		return nil, ErrNotPending
	}

	b, err := Get(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, b)
	return b, nil
}

// SweepPending cancels PENDING bookings created before now-olderThan.
func (s *Service) SweepPending(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&Booking{}).
		Where("status = ? AND created_at < ?", StatusPending, now.Add(-olderThan)).
		Updates(map[string]interface{}{
			"status":        StatusCanceled,
			"cancel_reason": "pending booking expired",
			"canceled_at":   now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("pending bookings expired", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *Service) bookableService(ctx context.Context, tenantID, serviceID string) (*catalog.Service, error) {
	svc, err := catalog.GetService(ctx, s.db, tenantID, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, ErrItemInactive
	}
	return svc, nil
}

// daySlots returns the open slots for the day and the number of active
// bookings already counted against the daily cap.
func (s *Service) daySlots(ctx context.Context, tenantID string, svc *catalog.Service, day time.Time) ([]Slot, int64, error) {
	date := day.Format(dateLayout)
	rules, err := catalog.RulesForDay(ctx, s.db, tenantID, svc.ID, day.Weekday())
	if err != nil {
		return nil, 0, err
	}

	var taken []Booking
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND service_id = ? AND date = ? AND type = ? AND status <> ?",
			tenantID, svc.ID, date, TypeTimeslot, StatusCanceled).
		Find(&taken).Error
	if err != nil {
		return nil, 0, err
	}

	busy := make([]Window, 0, len(taken))
	for _, b := range taken {
		if b.StartTime != nil && b.EndTime != nil {
			busy = append(busy, Window{Start: *b.StartTime, End: *b.EndTime})
		}
	}

	slots := GenerateSlots(SlotPlan{
		Day:             day,
		Rules:           rules,
		DurationMinutes: svc.DurationMinutes,
		BufferMinutes:   svc.BufferMinutes,
		Busy:            busy,
		Now:             s.now(),
	})
	return slots, int64(len(taken)), nil
}

func countTimeslotBookings(ctx context.Context, db *gorm.DB, tenantID, serviceID, date string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Booking{}).
		Where("tenant_id = ? AND service_id = ? AND date = ? AND type = ? AND status <> ?",
			tenantID, serviceID, date, TypeTimeslot, StatusCanceled).
		Count(&n).Error
	return n, err
}

func countDateBookings(ctx context.Context, db *gorm.DB, tenantID, date string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&Booking{}).
		Where("tenant_id = ? AND date = ? AND type = ? AND status <> ?",
			tenantID, date, TypeDate, StatusCanceled).
		Count(&n).Error
	return n, err
}

func findBySession(ctx context.Context, db *gorm.DB, tenantID, sessionID string) (*Booking, error) {
	var rows []Booking
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND checkout_session_id = ?", tenantID, sessionID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
