package exchange

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SetRate registers the directional ratio for (from, to). The inverse pair
// is left untouched.
func (e *Engine) SetRate(caller ethcommon.Address, from, to Asset, rateFrom, rateTo *uint256.Int) (*RateEntry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	if !from.Valid() || !to.Valid() {
		return nil, ErrInvalidAsset
	}
	if rateFrom == nil || rateTo == nil || rateFrom.IsZero() || rateTo.IsZero() {
		return nil, ErrInvalidRate
	}
	if from == to {
		return nil, ErrIdenticalAssets
	}
	entry := &RateEntry{
		Pair:     Pair{From: from, To: to},
		RateFrom: cloneAmount(rateFrom),
		RateTo:   cloneAmount(rateTo),
	}
	if err := e.state.ExchangeRatePut(entry); err != nil {
		return nil, err
	}
	e.emit(RateUpdatedEvent(caller, entry))
	return entry.Clone(), nil
}

// GetRate returns the registered entry for (from, to). An unset pair yields
// a zero-valued entry and false.
func (e *Engine) GetRate(from, to Asset) (*RateEntry, bool, error) {
	pair := Pair{From: from, To: to}
	zero := &RateEntry{Pair: pair, RateFrom: new(uint256.Int), RateTo: new(uint256.Int)}
	if e == nil || e.state == nil {
		return zero, false, errNilState
	}
	entry, ok, err := e.state.ExchangeRateGet(pair)
	if err != nil {
		return zero, false, err
	}
	if !ok || !entry.Tradable() {
		return zero, false, nil
	}
	return entry, true, nil
}

// Rates lists every registered entry ordered by (from, to).
func (e *Engine) Rates() ([]*RateEntry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	entries, err := e.state.ExchangeRates()
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}
