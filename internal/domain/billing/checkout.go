package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/events"
	stripeinfra "booking-app/internal/infra/stripe"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPaymentsDisabled = errors.New("tenant cannot accept payments yet")
	ErrUnknownKind      = errors.New("kind must be TIMESLOT or DATE")
	ErrBadMetadata      = errors.New("checkout session metadata is incomplete")

	// ErrRefundedCapacity means the payment succeeded but the slot was gone
	// by the time it settled; the charge was refunded.
	ErrRefundedCapacity = errors.New("slot sold out before payment settled, refunded")
)

// Gateway is the part of the Stripe client checkout needs.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req stripeinfra.CheckoutRequest) (*stripeinfra.CheckoutSession, error)
	Refund(ctx context.Context, paymentIntentID, idempotencyKey string) error
}

type Payments struct {
	db       *gorm.DB
	bookings *booking.Service
	gateway  Gateway
	events   events.Publisher
	log      *zap.Logger
	appURL   string
}

func NewPayments(db *gorm.DB, bookings *booking.Service, gw Gateway, pub events.Publisher, log *zap.Logger, appURL string) *Payments {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Payments{db: db, bookings: bookings, gateway: gw, events: pub, log: log, appURL: strings.TrimRight(appURL, "/")}
}

type CheckoutInput struct {
	Kind     booking.Type          `json:"kind"`
	ItemID   string                `json:"item_id"`
	Start    *time.Time            `json:"start,omitempty"` // TIMESLOT
	Date     string                `json:"date,omitempty"`  // DATE
	Customer booking.CustomerInput `json:"customer"`
	Notes    string                `json:"notes,omitempty"`
}

type CheckoutResult struct {
	PaymentID           string    `json:"payment_id"`
	SessionID           string    `json:"session_id"`
	URL                 string    `json:"url"`
	AmountCents         int64     `json:"amount_cents"`
	ApplicationFeeCents int64     `json:"application_fee_cents"`
	Currency            string    `json:"currency"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// metadata keys carried on the session and read back by the webhook
const (
	mdTenantID      = "tenant_id"
	mdPaymentID     = "payment_id"
	mdKind          = "kind"
	mdItemID        = "item_id"
	mdStart         = "start"
	mdDate          = "date"
	mdCustomerEmail = "customer_email"
	mdCustomerName  = "customer_name"
	mdCustomerPhone = "customer_phone"
	mdTotalCents    = "total_cents"
	mdFeeCents      = "fee_cents"
	mdNotes         = "notes"
)

// StartCheckout runs the checkout-time availability and capacity gate, then
// opens a Stripe session for the price as it stands now.
func (p *Payments) StartCheckout(ctx context.Context, t *tenants.Tenant, in CheckoutInput) (*CheckoutResult, error) {
	if !t.CanAcceptPayments() {
		return nil, ErrPaymentsDisabled
	}
	if err := in.Customer.Validate(); err != nil {
		return nil, err
	}

	var (
		amount int64
		name   string
		md     = map[string]string{}
	)
	switch in.Kind {
	case booking.TypeTimeslot:
		if in.Start == nil {
			return nil, booking.ErrSlotUnavailable
		}
		svc, slot, err := p.bookings.CheckTimeslot(ctx, t, in.ItemID, *in.Start)
		if err != nil {
			return nil, err
		}
		amount = svc.PriceCents
		name = fmt.Sprintf("%s, %s", svc.Name, slot.Start.In(t.Location()).Format("Mon 2 Jan 2006 15:04"))
		md[mdStart] = slot.Start.UTC().Format(time.RFC3339)
	case booking.TypeDate:
		tier, err := p.bookings.CheckDate(ctx, t, in.ItemID, in.Date)
		if err != nil {
			return nil, err
		}
		amount = tier.ChargeCents()
		name = fmt.Sprintf("%s, %s", tier.Name, in.Date)
		md[mdDate] = in.Date
	default:
		return nil, ErrUnknownKind
	}

	fee := ApplicationFee(amount, t.CommissionPercent)
	paymentID := uuid.NewString()
	md[mdTenantID] = t.ID
	md[mdPaymentID] = paymentID
	md[mdKind] = string(in.Kind)
	md[mdItemID] = in.ItemID
	md[mdCustomerEmail] = booking.NormalizeEmail(in.Customer.Email)
	md[mdCustomerName] = strings.TrimSpace(in.Customer.Name)
	md[mdCustomerPhone] = strings.TrimSpace(in.Customer.Phone)
	md[mdTotalCents] = strconv.FormatInt(amount, 10)
	md[mdFeeCents] = strconv.FormatInt(fee, 10)
	if in.Notes != "" {
		md[mdNotes] = truncate(in.Notes, 480)
	}

	storefront := tenants.BuildStorefrontURL(p.appURL, t.Slug)
	session, err := p.gateway.CreateCheckoutSession(ctx, stripeinfra.CheckoutRequest{
		ConnectedAccountID:  *t.StripeAccountID,
		Currency:            strings.ToLower(t.Currency),
		AmountCents:         amount,
		ApplicationFeeCents: fee,
		ProductName:         name,
		CustomerEmail:       md[mdCustomerEmail],
		SuccessURL:          storefront + "/booking/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:           storefront + "/booking/canceled",
		ClientReferenceID:   paymentID,
		Metadata:            md,
		IdempotencyKey:      paymentID,
	})
	if err != nil {
		return nil, err
	}

	pay := &Payment{
		ID:                  paymentID,
		TenantID:            t.ID,
		StripeSessionID:     session.ID,
		Kind:                string(in.Kind),
		ItemID:              in.ItemID,
		AmountCents:         amount,
		ApplicationFeeCents: fee,
		Currency:            strings.ToLower(t.Currency),
		CustomerEmail:       md[mdCustomerEmail],
		Status:              stripeinfra.PaymentOpen,
	}
	if err := CreatePayment(ctx, p.db, pay); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	return &CheckoutResult{
		PaymentID:           paymentID,
		SessionID:           session.ID,
		URL:                 session.URL,
		AmountCents:         amount,
		ApplicationFeeCents: fee,
		Currency:            pay.Currency,
		ExpiresAt:           session.ExpiresAt,
	}, nil
}

// CompletedSession is what the webhook extracts from checkout.session.completed.
type CompletedSession struct {
	ID              string
	PaymentIntentID string
	Outcome         string // stripeinfra.Payment* status
	Metadata        map[string]string
}

// CompleteCheckout turns a paid session into a booking under the advisory
// lock. When capacity ran out in between, the charge is refunded and
// ErrRefundedCapacity is returned.
func (p *Payments) CompleteCheckout(ctx context.Context, s CompletedSession) (*booking.Booking, error) {
	if s.Outcome != stripeinfra.PaymentPaid {
		if err := SetStatus(ctx, p.db, s.ID, s.Outcome, nil); err != nil && !errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
		return nil, nil
	}

	md, err := parseMetadata(s.Metadata)
	if err != nil {
		return nil, err
	}
	t, err := tenants.Get(ctx, p.db, md.tenantID)
	if err != nil {
		return nil, err
	}

	customer := booking.CustomerInput{Email: md.email, Name: md.name, Phone: md.phone}
	var b *booking.Booking
	switch md.kind {
	case booking.TypeTimeslot:
		b, _, err = p.bookings.CreateTimeslotBooking(ctx, booking.TimeslotBooking{
			TenantID:          t.ID,
			ServiceID:         md.itemID,
			Start:             md.start,
			Location:          t.Location(),
			Customer:          customer,
			TotalCents:        &md.total,
			PlatformFeeCents:  md.fee,
			Currency:          strings.ToLower(t.Currency),
			CheckoutSessionID: s.ID,
			PaymentIntentID:   s.PaymentIntentID,
			Notes:             md.notes,
		})
	case booking.TypeDate:
		b, _, err = p.bookings.CreateDateBooking(ctx, booking.DateBooking{
			TenantID:          t.ID,
			TierID:            md.itemID,
			Date:              md.date,
			Customer:          customer,
			TotalCents:        &md.total,
			PlatformFeeCents:  md.fee,
			Currency:          strings.ToLower(t.Currency),
			CheckoutSessionID: s.ID,
			PaymentIntentID:   s.PaymentIntentID,
			Notes:             md.notes,
		})
	}

	if booking.IsConflict(err) {
		return nil, p.refundForCapacity(ctx, t.ID, s, err)
	}
	if err != nil {
		return nil, err
	}

	extra := map[string]interface{}{"booking_id": b.ID}
	if s.PaymentIntentID != "" {
		extra["payment_intent_id"] = s.PaymentIntentID
	}
	if err := SetStatus(ctx, p.db, s.ID, stripeinfra.PaymentPaid, extra); err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}
	return b, nil
}

func (p *Payments) refundForCapacity(ctx context.Context, tenantID string, s CompletedSession, cause error) error {
	p.log.Warn("capacity gone at payment completion, refunding",
		zap.String("tenant_id", tenantID),
		zap.String("session_id", s.ID),
		zap.Error(cause),
	)
	if err := p.gateway.Refund(ctx, s.PaymentIntentID, "refund-"+s.ID); err != nil {
		return err
	}
	extra := map[string]interface{}{}
	if s.PaymentIntentID != "" {
		extra["payment_intent_id"] = s.PaymentIntentID
	}
	if err := SetStatus(ctx, p.db, s.ID, stripeinfra.PaymentRefundedCapacity, extra); err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return err
	}
	if err := p.events.Publish(ctx, events.PaymentRefundedOnCapacity, tenantID, map[string]string{
		"session_id":     s.ID,
		"customer_email": s.Metadata[mdCustomerEmail],
		"reason":         cause.Error(),
	}); err != nil {
		p.log.Warn("publish refund event", zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrRefundedCapacity, cause)
}

// ExpireCheckout marks an abandoned session.
func (p *Payments) ExpireCheckout(ctx context.Context, sessionID string) error {
	err := SetStatus(ctx, p.db, sessionID, stripeinfra.PaymentExpired, nil)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil
	}
	return err
}

// AccountUpdated mirrors a connected account's charges_enabled flag.
func (p *Payments) AccountUpdated(ctx context.Context, accountID string, chargesEnabled bool) error {
	return p.db.WithContext(ctx).Model(&tenants.Tenant{}).
		Where("stripe_account_id = ?", accountID).
		Update("charges_enabled", chargesEnabled).Error
}

type sessionMetadata struct {
	tenantID string
	kind     booking.Type
	itemID   string
	start    time.Time
	date     string
	email    string
	name     string
	phone    string
	notes    string
	total    int64
	fee      int64
}

func parseMetadata(m map[string]string) (*sessionMetadata, error) {
	md := &sessionMetadata{
		tenantID: m[mdTenantID],
		kind:     booking.Type(m[mdKind]),
		itemID:   m[mdItemID],
		date:     m[mdDate],
		email:    m[mdCustomerEmail],
		name:     m[mdCustomerName],
		phone:    m[mdCustomerPhone],
		notes:    m[mdNotes],
	}
	if md.tenantID == "" || md.itemID == "" || md.email == "" {
		return nil, ErrBadMetadata
	}

	var err error
	if md.total, err = strconv.ParseInt(m[mdTotalCents], 10, 64); err != nil {
		return nil, fmt.Errorf("%w: total_cents", ErrBadMetadata)
	}
	if md.fee, err = strconv.ParseInt(m[mdFeeCents], 10, 64); err != nil {
		return nil, fmt.Errorf("%w: fee_cents", ErrBadMetadata)
	}

	switch md.kind {
	case booking.TypeTimeslot:
		if md.start, err = time.Parse(time.RFC3339, m[mdStart]); err != nil {
			return nil, fmt.Errorf("%w: start", ErrBadMetadata)
		}
	case booking.TypeDate:
		if md.date == "" {
			return nil, fmt.Errorf("%w: date", ErrBadMetadata)
		}
	default:
		return nil, ErrUnknownKind
	}
	return md, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
