package billing

import (
	"booking-app/internal/domain/tenants"

	"github.com/shopspring/decimal"
)

var ErrInvalidCommission = tenants.ErrInvalidCommission

var hundred = decimal.NewFromInt(100)

// ApplicationFee is round-half-up(total * percent / 100) in cents.
func ApplicationFee(totalCents int64, percent decimal.Decimal) int64 {
	if totalCents <= 0 || !percent.IsPositive() {
		return 0
	}
	fee := decimal.NewFromInt(totalCents).Mul(percent).Div(hundred).Round(0).IntPart()
	if fee > totalCents {
		return totalCents
	}
	return fee
}

func ParseCommission(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidCommission
	}
	if err := ValidateCommission(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func ValidateCommission(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return ErrInvalidCommission
	}
	return nil
}
