package tenants

import (
	"context"
	"testing"

	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_ForwardOnly(t *testing.T) {
	assert.True(t, CanTransition(OnboardingNotStarted, OnboardingDiscovery))
	assert.True(t, CanTransition(OnboardingDiscovery, OnboardingMarketResearch))
	assert.True(t, CanTransition(OnboardingMarketing, OnboardingCompleted))

	assert.False(t, CanTransition(OnboardingDiscovery, OnboardingNotStarted))
	assert.False(t, CanTransition(OnboardingNotStarted, OnboardingServices))
	assert.False(t, CanTransition(OnboardingServices, OnboardingServices))
}

func TestCanTransition_SkipFromAnyNonTerminal(t *testing.T) {
	for _, s := range []OnboardingStatus{
		OnboardingNotStarted, OnboardingDiscovery, OnboardingMarketResearch,
		OnboardingServices, OnboardingMarketing,
	} {
		assert.True(t, CanTransition(s, OnboardingSkipped), s)
	}
	assert.False(t, CanTransition(OnboardingCompleted, OnboardingSkipped))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, OnboardingCompleted.IsTerminal())
	assert.True(t, OnboardingSkipped.IsTerminal())
	assert.False(t, OnboardingDiscovery.IsTerminal())
	assert.False(t, OnboardingStatus("BOGUS").IsTerminal())
	assert.Empty(t, NextStatuses(OnboardingCompleted))
}

func TestParseOnboardingStatus(t *testing.T) {
	s, ok := ParseOnboardingStatus("MARKETING")
	assert.True(t, ok)
	assert.Equal(t, OnboardingMarketing, s)

	_, ok = ParseOnboardingStatus("marketing")
	assert.False(t, ok)
}

func onboardingRow(status OnboardingStatus, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "onboarding_status", "onboarding_version"}).
		AddRow("t-1", string(status), version)
}

func TestAdvanceOnboarding_Success(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM "tenants"`).
		WillReturnRows(onboardingRow(OnboardingDiscovery, 3))
	mock.ExpectExec(`UPDATE "tenants" SET .*onboarding_version`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	change, err := AdvanceOnboarding(context.Background(), db, "t-1", OnboardingMarketResearch, 3)
	require.NoError(t, err)
	assert.Equal(t, OnboardingDiscovery, change.From)
	assert.Equal(t, OnboardingMarketResearch, change.To)
	assert.Equal(t, 4, change.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceOnboarding_StaleVersion(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM "tenants"`).
		WillReturnRows(onboardingRow(OnboardingDiscovery, 5))

	_, err := AdvanceOnboarding(context.Background(), db, "t-1", OnboardingMarketResearch, 4)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceOnboarding_LostRace(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM "tenants"`).
		WillReturnRows(onboardingRow(OnboardingServices, 1))
	mock.ExpectExec(`UPDATE "tenants" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := AdvanceOnboarding(context.Background(), db, "t-1", OnboardingMarketing, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceOnboarding_Backwards(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM "tenants"`).
		WillReturnRows(onboardingRow(OnboardingMarketing, 2))

	_, err := AdvanceOnboarding(context.Background(), db, "t-1", OnboardingDiscovery, 2)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceOnboarding_NotFound(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM "tenants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "onboarding_status", "onboarding_version"}))

	_, err := AdvanceOnboarding(context.Background(), db, "missing", OnboardingDiscovery, 0)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}
