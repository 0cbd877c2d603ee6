package ledger

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rateswap/core/events"
	"rateswap/core/types"
)

const (
	// EventTypeTransfer is emitted for caller-initiated transfers.
	EventTypeTransfer = "ledger.transfer"
	// EventTypeApproval is emitted when an owner changes a spender allowance.
	EventTypeApproval = "ledger.approval"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string { return e.evt.Type }

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// TransferEvent records a movement of asset ("native" or a token address).
func TransferEvent(asset string, from, to ethcommon.Address, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"asset":  asset,
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.Dec(),
		},
	}
}

// ApprovalEvent records an allowance change.
func ApprovalEvent(token, owner, spender ethcommon.Address, amount *uint256.Int) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   token.Hex(),
			"owner":   owner.Hex(),
			"spender": spender.Hex(),
			"amount":  amount.Dec(),
		},
	}
}
