package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"donation-gate/internal/domain"
)

// ParseAmount accepts the loosely typed amount a JSON body carries (number or
// numeric string) and returns it as a decimal. Validation of the value itself
// happens in ValidateAmount.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch a := v.(type) {
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return decimal.Zero, fmt.Errorf("%w: amount must be finite", domain.ErrInvalidArgument)
		}
		return decimal.NewFromFloat(a), nil
	case int:
		return decimal.NewFromInt(int64(a)), nil
	case int64:
		return decimal.NewFromInt(a), nil
	case json.Number:
		return parseAmountString(a.String())
	case string:
		return parseAmountString(a)
	case decimal.Decimal:
		return a, nil
	case nil:
		return decimal.Zero, fmt.Errorf("%w: amount is required", domain.ErrInvalidArgument)
	default:
		return decimal.Zero, fmt.Errorf("%w: amount must be numeric", domain.ErrInvalidArgument)
	}
}

func parseAmountString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", domain.ErrInvalidArgument)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidArgument, s)
	}
	return d, nil
}

// ValidateAmount requires a positive amount with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidArgument)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount has more than two decimal places", domain.ErrInvalidArgument)
	}
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount exceeds %s", domain.ErrInvalidArgument, maxAmount)
	}
	return nil
}

// maxAmount is the largest value NUMERIC(12, 2) holds.
var maxAmount = decimal.RequireFromString("9999999999.99")
