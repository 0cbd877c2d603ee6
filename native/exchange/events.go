package exchange

import (
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rateswap/core/events"
	"rateswap/core/types"
)

const (
	// EventTypeSwapExecuted is emitted after a swap commits.
	EventTypeSwapExecuted = "exchange.swap.executed"
	// EventTypeRateUpdated is emitted when the owner writes a rate entry.
	EventTypeRateUpdated = "exchange.rate.updated"
	// EventTypeFeeUpdated is emitted when the owner replaces the per-mille fee.
	EventTypeFeeUpdated = "exchange.fee.updated"
	// EventTypeServiceChargeUpdated is emitted when the owner replaces the service charge.
	EventTypeServiceChargeUpdated = "exchange.service_charge.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// SwapExecutedEvent is the audit record of a committed swap.
func SwapExecutedEvent(result *SwapResult) *types.Event {
	return &types.Event{
		Type: EventTypeSwapExecuted,
		Attributes: map[string]string{
			"caller":    result.Caller.Hex(),
			"from":      result.Pair.From.String(),
			"to":        result.Pair.To.String(),
			"amountIn":  formatAmount(result.AmountIn),
			"amountOut": formatAmount(result.NetOutput),
			"fee":       formatAmount(result.FeeAmount),
			"charge":    formatAmount(result.ChargePaid),
			"refunded":  formatAmount(result.Refunded),
		},
	}
}

// RateUpdatedEvent captures a rate table write.
func RateUpdatedEvent(caller ethcommon.Address, entry *RateEntry) *types.Event {
	return &types.Event{
		Type: EventTypeRateUpdated,
		Attributes: map[string]string{
			"caller":   caller.Hex(),
			"from":     entry.Pair.From.String(),
			"to":       entry.Pair.To.String(),
			"rateFrom": formatAmount(entry.RateFrom),
			"rateTo":   formatAmount(entry.RateTo),
		},
	}
}

// FeeUpdatedEvent captures a fee policy write.
func FeeUpdatedEvent(caller ethcommon.Address, previous, current uint64) *types.Event {
	return &types.Event{
		Type: EventTypeFeeUpdated,
		Attributes: map[string]string{
			"caller":   caller.Hex(),
			"previous": strconv.FormatUint(previous, 10),
			"fee":      strconv.FormatUint(current, 10),
		},
	}
}

// ServiceChargeUpdatedEvent captures a service charge write.
func ServiceChargeUpdatedEvent(caller ethcommon.Address, charge ServiceCharge) *types.Event {
	return &types.Event{
		Type: EventTypeServiceChargeUpdated,
		Attributes: map[string]string{
			"caller":       caller.Hex(),
			"minimum":      formatAmount(charge.Minimum),
			"refundExcess": strconv.FormatBool(charge.RefundExcess),
		},
	}
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
