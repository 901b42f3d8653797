package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/account"
	"github.com/stripe/stripe-go/v75/accountlink"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/refund"
)

var ErrNotConfigured = errors.New("stripe is not configured")

// Checkout sessions must live at least 30 minutes.
const MinSessionTTL = 30 * time.Minute

type CheckoutRequest struct {
	ConnectedAccountID  string
	Currency            string
	AmountCents         int64
	ApplicationFeeCents int64
	ProductName         string
	CustomerEmail       string
	SuccessURL          string
	CancelURL           string
	ClientReferenceID   string
	Metadata            map[string]string
	IdempotencyKey      string
	TTL                 time.Duration
}

type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

type Client struct {
	configured bool
}

// NewClient sets the package-level API key used by the stripe-go resources.
func NewClient(secretKey string) *Client {
	if secretKey == "" {
		return &Client{}
	}
	stripego.Key = secretKey
	return &Client{configured: true}
}

func (c *Client) Configured() bool {
	return c != nil && c.configured
}

// CreateCheckoutSession opens a payment-mode session whose charge lands on the
// tenant's connected account minus the platform's application fee.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	ttl := req.TTL
	if ttl < MinSessionTTL {
		ttl = MinSessionTTL
	}
	expiresAt := time.Now().Add(ttl)

	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
		ExpiresAt:  stripego.Int64(expiresAt.Unix()),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripego.String(req.Currency),
					UnitAmount: stripego.Int64(req.AmountCents),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripego.String(req.ProductName),
					},
				},
				Quantity: stripego.Int64(1),
			},
		},
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripego.Int64(req.ApplicationFeeCents),
			TransferData: &stripego.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripego.String(req.ConnectedAccountID),
			},
			Metadata: req.Metadata,
		},
		Metadata: req.Metadata,
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripego.String(req.ClientReferenceID)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL, ExpiresAt: time.Unix(s.ExpiresAt, 0)}, nil
}

// Refund returns the full charge, the application fee and the transfer.
func (c *Client) Refund(ctx context.Context, paymentIntentID, idempotencyKey string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if paymentIntentID == "" {
		return errors.New("refund: missing payment intent")
	}
	params := &stripego.RefundParams{
		PaymentIntent:        stripego.String(paymentIntentID),
		Reason:               stripego.String(string(stripego.RefundReasonRequestedByCustomer)),
		RefundApplicationFee: stripego.Bool(true),
		ReverseTransfer:      stripego.Bool(true),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("refund %s: %w", paymentIntentID, err)
	}
	return nil
}

// CreateConnectedAccount creates an Express account for a tenant.
func (c *Client) CreateConnectedAccount(ctx context.Context, email, tenantID string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripego.AccountParams{
		Type:  stripego.String(string(stripego.AccountTypeExpress)),
		Email: stripego.String(email),
	}
	params.Context = ctx
	params.AddMetadata("tenant_id", tenantID)
	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("create connected account: %w", err)
	}
	return acct.ID, nil
}

// OnboardingLink returns a one-time URL for the tenant to finish Stripe onboarding.
func (c *Client) OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripego.AccountLinkParams{
		Account:    stripego.String(accountID),
		RefreshURL: stripego.String(refreshURL),
		ReturnURL:  stripego.String(returnURL),
		Type:       stripego.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := accountlink.New(params)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}
