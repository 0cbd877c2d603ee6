package exchange

import "github.com/holiman/uint256"

const (
	// MilleDenominator is the fee denominator: fees are parts per thousand.
	MilleDenominator = 1000
	// MaxFeeMille is the exclusive upper bound of the per-mille fee.
	MaxFeeMille = 100
)

var milleDenominator = uint256.NewInt(MilleDenominator)

// convert returns amount * rateTo / rateFrom with truncating division. The
// product is computed in 512 bits so only a quotient wider than 256 bits
// overflows.
func convert(amount *uint256.Int, entry *RateEntry) (*uint256.Int, error) {
	if !entry.Tradable() {
		return nil, ErrUnknownPair
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amount, entry.RateTo, entry.RateFrom)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// applyFee splits the raw output into the net amount paid to the caller and
// the fee retained by the engine: net = raw * (1000 - fee) / 1000, truncating,
// and fee = raw - net. Truncation favours the reserve.
func applyFee(raw *uint256.Int, feeMille uint64) (net, fee *uint256.Int, err error) {
	if feeMille >= MaxFeeMille {
		return nil, nil, ErrInvalidFee
	}
	keep := uint256.NewInt(MilleDenominator - feeMille)
	out, overflow := new(uint256.Int).MulDivOverflow(raw, keep, milleDenominator)
	if overflow {
		return nil, nil, ErrOverflow
	}
	return out, new(uint256.Int).Sub(raw, out), nil
}

// requiredValue is the native value a caller must attach: the service charge
// minimum, plus the principal when the input asset is native.
func requiredValue(from Asset, amount *uint256.Int, charge ServiceCharge) (*uint256.Int, error) {
	required := cloneAmount(charge.Minimum)
	if from.IsNative() {
		if _, overflow := required.AddOverflow(required, amount); overflow {
			return nil, ErrOverflow
		}
	}
	return required, nil
}
