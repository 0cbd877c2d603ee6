package exchange

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// NormalizeRate converts a human readable ratio ("humanFrom units of the
// input asset are worth humanTo units of the output asset") into the
// smallest-unit components stored in the rate table.
func NormalizeRate(fromDecimals, toDecimals uint8, humanFrom, humanTo string) (rateFrom, rateTo *uint256.Int, err error) {
	rateFrom, err = ToBaseUnits(humanFrom, fromDecimals)
	if err != nil {
		return nil, nil, fmt.Errorf("rate from: %w", err)
	}
	rateTo, err = ToBaseUnits(humanTo, toDecimals)
	if err != nil {
		return nil, nil, fmt.Errorf("rate to: %w", err)
	}
	if rateFrom.IsZero() || rateTo.IsZero() {
		return nil, nil, ErrInvalidRate
	}
	return rateFrom, rateTo, nil
}

// ToBaseUnits scales a decimal string by 10^decimals. Precision beyond the
// asset's decimals is rejected rather than rounded.
func ToBaseUnits(human string, decimals uint8) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(human)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", human, err)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("amount %q must not be negative", human)
	}
	scaled := value.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q exceeds %d decimals", human, decimals)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// FromBaseUnits renders smallest-unit amounts as a decimal string.
func FromBaseUnits(amount *uint256.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(decimals)).String()
}
