package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"booking-app/internal/domain/catalog"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/events"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler runs one tool for a tenant. args has already passed CheckArgs.
type Handler func(ctx context.Context, tenantID string, args json.RawMessage) (any, error)

// Toolbox binds tool names to the domain calls that implement them.
type Toolbox struct {
	db     *gorm.DB
	events events.Publisher
	log    *zap.Logger
}

func NewToolbox(db *gorm.DB, pub events.Publisher, log *zap.Logger) *Toolbox {
	if pub == nil {
		pub = events.Nop{Log: log}
	}
	return &Toolbox{db: db, events: pub, log: log}
}

func (tb *Toolbox) Handlers() map[string]Handler {
	return map[string]Handler{
		"get_tenant_profile":   tb.tenantProfile,
		"list_catalog":         tb.listCatalog,
		"get_onboarding_state": tb.onboardingState,
		"advance_onboarding":   tb.advanceOnboarding,
		"update_branding":      tb.updateBranding,
		"create_service":       tb.createService,
		"update_service_price": tb.updateServicePrice,
		"create_tier":          tb.createTier,
	}
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return nil
}

func (tb *Toolbox) tenantProfile(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
	t, err := tenants.Get(ctx, tb.db, tenantID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":               t.Name,
		"slug":               t.Slug,
		"timezone":           t.Timezone,
		"currency":           t.Currency,
		"branding":           t.Branding,
		"accepting_payments": t.CanAcceptPayments(),
	}, nil
}

func (tb *Toolbox) listCatalog(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
	return catalog.LoadStorefront(ctx, tb.db, tenantID)
}

func (tb *Toolbox) onboardingState(ctx context.Context, tenantID string, _ json.RawMessage) (any, error) {
	t, err := tenants.Get(ctx, tb.db, tenantID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":  t.OnboardingStatus,
		"version": t.OnboardingVersion,
		"next":    tenants.NextStatuses(t.OnboardingStatus),
	}, nil
}

func (tb *Toolbox) advanceOnboarding(ctx context.Context, tenantID string, raw json.RawMessage) (any, error) {
	var args struct {
		To              string `json:"to"`
		ExpectedVersion int    `json:"expected_version"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	to, ok := tenants.ParseOnboardingStatus(args.To)
	if !ok {
		return nil, fmt.Errorf("%w: unknown phase %q", ErrBadArgs, args.To)
	}
	change, err := tenants.AdvanceOnboarding(ctx, tb.db, tenantID, to, args.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if err := tb.events.Publish(ctx, events.TenantOnboardingAdvanced, tenantID, change); err != nil {
		tb.log.Warn("publish onboarding change failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return change, nil
}

func (tb *Toolbox) updateBranding(ctx context.Context, tenantID string, raw json.RawMessage) (any, error) {
	var args struct {
		Branding map[string]any `json:"branding"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return tenants.UpdateBranding(ctx, tb.db, tenantID, args.Branding)
}

func (tb *Toolbox) createService(ctx context.Context, tenantID string, raw json.RawMessage) (any, error) {
	var args struct {
		Name            string `json:"name"`
		Description     string `json:"description"`
		DurationMinutes int    `json:"duration_minutes"`
		BufferMinutes   int    `json:"buffer_minutes"`
		PriceCents      int64  `json:"price_cents"`
		MaxPerDay       int    `json:"max_per_day"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	svc := catalog.Service{
		Name:            args.Name,
		Description:     args.Description,
		DurationMinutes: args.DurationMinutes,
		BufferMinutes:   args.BufferMinutes,
		PriceCents:      args.PriceCents,
		MaxPerDay:       args.MaxPerDay,
		Active:          true,
	}
	if err := catalog.CreateService(ctx, tb.db, tenantID, &svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (tb *Toolbox) updateServicePrice(ctx context.Context, tenantID string, raw json.RawMessage) (any, error) {
	var args struct {
		ServiceID  string `json:"service_id"`
		PriceCents int64  `json:"price_cents"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return catalog.UpdateService(ctx, tb.db, tenantID, args.ServiceID, func(s *catalog.Service) {
		s.PriceCents = args.PriceCents
	})
}

func (tb *Toolbox) createTier(ctx context.Context, tenantID string, raw json.RawMessage) (any, error) {
	var args struct {
		SegmentID    string   `json:"segment_id"`
		Name         string   `json:"name"`
		PriceCents   int64    `json:"price_cents"`
		DepositCents *int64   `json:"deposit_cents"`
		Features     []string `json:"features"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	tier := catalog.Tier{
		SegmentID:    args.SegmentID,
		Name:         args.Name,
		PriceCents:   args.PriceCents,
		DepositCents: args.DepositCents,
		Features:     args.Features,
		Active:       true,
	}
	if err := catalog.CreateTier(ctx, tb.db, tenantID, &tier); err != nil {
		return nil, err
	}
	return tier, nil
}
