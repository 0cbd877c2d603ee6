package exchange

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rateswap/core/events"
	"rateswap/core/types"
)

// Engine executes fixed-rate swaps against its own reserves. It performs no
// locking: callers must serialise every operation, as a ledger host would.
type Engine struct {
	owner         ethcommon.Address
	state         State
	reserves      *Reserves
	emitter       events.Emitter
	defaultCharge ServiceCharge
}

// NewEngine constructs an engine administered by owner, backed by in-memory
// parameter state and the default service charge.
func NewEngine(owner ethcommon.Address) *Engine {
	return &Engine{
		owner:         owner,
		state:         NewMemoryState(),
		emitter:       events.NoopEmitter{},
		defaultCharge: DefaultServiceCharge(),
	}
}

// SetState configures the parameter store used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetReserves configures the reserve accessor used by the engine.
func (e *Engine) SetReserves(reserves *Reserves) { e.reserves = reserves }

// Reserves returns the configured reserve accessor.
func (e *Engine) Reserves() *Reserves { return e.reserves }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetDefaultServiceCharge overrides the charge applied until the owner
// writes one explicitly.
func (e *Engine) SetDefaultServiceCharge(charge ServiceCharge) { e.defaultCharge = charge.Clone() }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

// Quote computes the outcome of swapping amount of from into to without
// moving funds. It applies the same validation as Swap except the attached
// value check, reporting the required value instead.
func (e *Engine) Quote(from, to Asset, amount *uint256.Int) (*Quote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.reserves == nil {
		return nil, errNilReserves
	}
	quote, err := e.price(from, to, amount)
	if err != nil {
		return nil, err
	}
	if err := e.checkReserve(quote); err != nil {
		return nil, err
	}
	return quote, nil
}

func (e *Engine) price(from, to Asset, amount *uint256.Int) (*Quote, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if !from.Valid() || !to.Valid() {
		return nil, ErrInvalidAsset
	}
	entry, ok, err := e.GetRate(from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPair
	}
	feeMille, err := e.GetFee()
	if err != nil {
		return nil, err
	}
	raw, err := convert(amount, entry)
	if err != nil {
		return nil, err
	}
	net, fee, err := applyFee(raw, feeMille)
	if err != nil {
		return nil, err
	}
	charge, err := e.GetServiceCharge()
	if err != nil {
		return nil, err
	}
	required, err := requiredValue(from, amount, charge)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Pair:          entry.Pair,
		AmountIn:      cloneAmount(amount),
		RawOutput:     raw,
		FeeAmount:     fee,
		NetOutput:     net,
		FeeMille:      feeMille,
		RequiredValue: required,
	}, nil
}

// checkReserve compares against the balance before any inbound transfer of
// the call, so attached value never funds its own payout.
func (e *Engine) checkReserve(quote *Quote) error {
	reserve, err := e.reserves.Balance(quote.Pair.To)
	if err != nil {
		return fmt.Errorf("exchange: read reserve %s: %w", quote.Pair.To, err)
	}
	if reserve.Lt(quote.NetOutput) {
		return ErrInsufficientReserve
	}
	return nil
}

// Swap exchanges req.Amount of req.From for req.To at the registered rate,
// minus the per-mille fee. Either every transfer commits or the ledger is
// reverted to its state before the call.
func (e *Engine) Swap(req SwapRequest) (*SwapResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.reserves == nil {
		return nil, errNilReserves
	}
	quote, err := e.price(req.From, req.To, req.Amount)
	if err != nil {
		return nil, err
	}
	attached := cloneAmount(req.AttachedValue)
	if attached.Lt(quote.RequiredValue) {
		return nil, ErrInsufficientFeePayment
	}
	if err := e.checkReserve(quote); err != nil {
		return nil, err
	}
	charge, err := e.GetServiceCharge()
	if err != nil {
		return nil, err
	}

	// Everything the caller attached is kept unless the policy refunds what
	// exceeds the minimum charge and any native principal.
	refund := new(uint256.Int)
	retained := new(uint256.Int).Sub(attached, principalPart(req.From, req.Amount))
	if charge.RefundExcess {
		refund.Sub(attached, quote.RequiredValue)
		retained = cloneAmount(charge.Minimum)
	}

	snap := e.reserves.snapshot()
	if err := e.reserves.Pull(Native, req.Caller, attached); err != nil {
		e.reserves.revert(snap)
		return nil, err
	}
	if !req.From.IsNative() {
		if err := e.reserves.Pull(req.From, req.Caller, req.Amount); err != nil {
			e.reserves.revert(snap)
			return nil, err
		}
	}
	if err := e.reserves.Pay(req.To, req.Caller, quote.NetOutput); err != nil {
		e.reserves.revert(snap)
		return nil, err
	}
	if err := e.reserves.Pay(Native, req.Caller, refund); err != nil {
		e.reserves.revert(snap)
		return nil, err
	}

	result := &SwapResult{
		Quote:      *quote,
		Caller:     req.Caller,
		ChargePaid: retained,
		Refunded:   refund,
	}
	e.emit(SwapExecutedEvent(result))
	return result, nil
}

func principalPart(from Asset, amount *uint256.Int) *uint256.Int {
	if from.IsNative() {
		return cloneAmount(amount)
	}
	return new(uint256.Int)
}
