package exchange

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RateEntry is the registered conversion ratio for a directional pair. Both
// components are expressed in the smallest unit of their asset.
type RateEntry struct {
	Pair     Pair
	RateFrom *uint256.Int
	RateTo   *uint256.Int
}

// Tradable reports whether both components are strictly positive.
func (r *RateEntry) Tradable() bool {
	if r == nil || r.RateFrom == nil || r.RateTo == nil {
		return false
	}
	return !r.RateFrom.IsZero() && !r.RateTo.IsZero()
}

// Clone returns a deep copy of the entry.
func (r *RateEntry) Clone() *RateEntry {
	if r == nil {
		return nil
	}
	return &RateEntry{Pair: r.Pair, RateFrom: cloneAmount(r.RateFrom), RateTo: cloneAmount(r.RateTo)}
}

// ServiceCharge is the flat native-value payment required on every swap. It
// is independent of the per-mille output fee.
type ServiceCharge struct {
	// Minimum native units that must be attached beyond any native principal.
	Minimum *uint256.Int
	// RefundExcess returns attached value above the minimum (and principal)
	// to the caller instead of retaining it in the native reserve.
	RefundExcess bool
}

// Clone returns a deep copy of the charge.
func (c ServiceCharge) Clone() ServiceCharge {
	return ServiceCharge{Minimum: cloneAmount(c.Minimum), RefundExcess: c.RefundExcess}
}

// DefaultServiceCharge is 0.001 of an 18-decimal native unit.
func DefaultServiceCharge() ServiceCharge {
	return ServiceCharge{Minimum: uint256.NewInt(1_000_000_000_000_000)}
}

// SwapRequest captures a caller's exchange request.
type SwapRequest struct {
	Caller ethcommon.Address
	From   Asset
	To     Asset
	// Amount of From in its smallest unit.
	Amount *uint256.Int
	// AttachedValue is the native value sent with the call.
	AttachedValue *uint256.Int
}

// Quote is the computed outcome of a swap without any funds moved.
type Quote struct {
	Pair      Pair
	AmountIn  *uint256.Int
	RawOutput *uint256.Int
	FeeAmount *uint256.Int
	NetOutput *uint256.Int
	FeeMille  uint64
	// RequiredValue is the minimum native value the caller must attach.
	RequiredValue *uint256.Int
}

// SwapResult reports a committed swap.
type SwapResult struct {
	Quote
	Caller ethcommon.Address
	// ChargePaid is the attached native value kept as the service charge,
	// including any excess that was not refunded.
	ChargePaid *uint256.Int
	// Refunded is the excess attached value returned to the caller.
	Refunded *uint256.Int
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
