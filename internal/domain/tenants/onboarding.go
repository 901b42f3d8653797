package tenants

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type OnboardingStatus string

const (
	OnboardingNotStarted     OnboardingStatus = "NOT_STARTED"
	OnboardingDiscovery      OnboardingStatus = "DISCOVERY"
	OnboardingMarketResearch OnboardingStatus = "MARKET_RESEARCH"
	OnboardingServices       OnboardingStatus = "SERVICES"
	OnboardingMarketing      OnboardingStatus = "MARKETING"
	OnboardingCompleted      OnboardingStatus = "COMPLETED"
	OnboardingSkipped        OnboardingStatus = "SKIPPED"
)

var (
	ErrInvalidTransition = errors.New("invalid onboarding transition")
	ErrVersionConflict   = errors.New("onboarding version conflict")
	ErrTenantNotFound    = errors.New("tenant not found")
)

// transitions is the single source of truth for forward moves.
var transitions = map[OnboardingStatus][]OnboardingStatus{
	OnboardingNotStarted:     {OnboardingDiscovery, OnboardingSkipped},
	OnboardingDiscovery:      {OnboardingMarketResearch, OnboardingSkipped},
	OnboardingMarketResearch: {OnboardingServices, OnboardingSkipped},
	OnboardingServices:       {OnboardingMarketing, OnboardingSkipped},
	OnboardingMarketing:      {OnboardingCompleted, OnboardingSkipped},
	OnboardingCompleted:      nil,
	OnboardingSkipped:        nil,
}

func ParseOnboardingStatus(s string) (OnboardingStatus, bool) {
	st := OnboardingStatus(s)
	_, ok := transitions[st]
	return st, ok
}

func (s OnboardingStatus) IsTerminal() bool {
	_, known := transitions[s]
	return known && len(transitions[s]) == 0
}

func CanTransition(from, to OnboardingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists where a tenant may go from s.
func NextStatuses(s OnboardingStatus) []OnboardingStatus {
	out := make([]OnboardingStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

type OnboardingChange struct {
	TenantID string
	From     OnboardingStatus
	To       OnboardingStatus
	Version  int
}

// AdvanceOnboarding moves a tenant to `to` if the transition table allows it
// and the stored version still equals expectedVersion. The version is bumped
// in the same UPDATE, so two writers holding the same version cannot both win.
func AdvanceOnboarding(ctx context.Context, db *gorm.DB, tenantID string, to OnboardingStatus, expectedVersion int) (*OnboardingChange, error) {
	var t Tenant
	if err := db.WithContext(ctx).
		Select("id", "onboarding_status", "onboarding_version").
		First(&t, "id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	if t.OnboardingVersion != expectedVersion {
		return nil, ErrVersionConflict
	}
	if !CanTransition(t.OnboardingStatus, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.OnboardingStatus, to)
	}

	res := db.WithContext(ctx).
		Model(&Tenant{}).
		Where("id = ? AND onboarding_version = ?", tenantID, expectedVersion).
		Updates(map[string]interface{}{
			"onboarding_status":  to,
			"onboarding_version": gorm.Expr("onboarding_version + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update onboarding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrVersionConflict
	}

	return &OnboardingChange{
		TenantID: tenantID,
		From:     t.OnboardingStatus,
		To:       to,
		Version:  expectedVersion + 1,
	}, nil
}
