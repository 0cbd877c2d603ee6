package runtime

import (
	"context"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rateswap/native/exchange"
	"rateswap/native/ledger"
	auditstore "rateswap/services/swapd/storage"
)

// Allocation credits an account with an asset at first boot.
type Allocation struct {
	Account ethcommon.Address
	Asset   exchange.Asset
	Amount  *uint256.Int
}

// Genesis describes the state applied the first time the daemon starts
// against an empty database.
type Genesis struct {
	Tokens      []ledger.Token
	Allocations []Allocation
	Rates       []exchange.RateEntry
	FeeMille    uint64
	// ServiceCharge, when set, is written explicitly instead of relying on
	// the engine default.
	ServiceCharge *exchange.ServiceCharge
}

// Bootstrap applies genesis unless state was restored from a previous run.
// It reports whether genesis was applied.
func (r *Runtime) Bootstrap(ctx context.Context, g Genesis) (bool, error) {
	if r.restored {
		return false, nil
	}
	owner := r.engine.Owner()
	_, err := r.commit(ctx, "bootstrap", func() (*auditstore.Receipt, error) {
		for _, token := range g.Tokens {
			if err := r.ledger.RegisterToken(token); err != nil {
				return nil, err
			}
		}
		for i, alloc := range g.Allocations {
			if err := r.credit(alloc); err != nil {
				return nil, fmt.Errorf("genesis allocation %d: %w", i, err)
			}
		}
		if err := r.engine.SetFee(owner, g.FeeMille); err != nil {
			return nil, err
		}
		if g.ServiceCharge != nil {
			if err := r.engine.SetServiceCharge(owner, *g.ServiceCharge); err != nil {
				return nil, err
			}
		}
		for _, rate := range g.Rates {
			if _, err := r.engine.SetRate(owner, rate.Pair.From, rate.Pair.To, rate.RateFrom, rate.RateTo); err != nil {
				return nil, fmt.Errorf("genesis rate %s: %w", rate.Pair, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	r.restored = true
	for _, token := range g.Tokens {
		r.publishReserve(exchange.Fungible(token.Address))
	}
	r.publishReserve(exchange.Native)
	r.logger.InfoContext(ctx, "genesis applied", "tokens", len(g.Tokens), "allocations", len(g.Allocations), "rates", len(g.Rates))
	return true, nil
}

func (r *Runtime) credit(alloc Allocation) error {
	switch alloc.Asset.Kind() {
	case exchange.KindNative:
		return r.ledger.CreditNative(alloc.Account, alloc.Amount)
	case exchange.KindFungible:
		token, _ := alloc.Asset.Token()
		return r.ledger.MintToken(token, alloc.Account, alloc.Amount)
	default:
		return exchange.ErrInvalidAsset
	}
}
