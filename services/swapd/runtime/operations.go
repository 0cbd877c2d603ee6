package runtime

import (
	"context"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rateswap/native/exchange"
	"rateswap/native/ledger"
	auditstore "rateswap/services/swapd/storage"
)

// SwapOutcome is a committed swap with its audit receipt id.
type SwapOutcome struct {
	*exchange.SwapResult
	ReceiptID string
}

// SetRate writes a rate table entry on behalf of caller.
func (r *Runtime) SetRate(ctx context.Context, caller ethcommon.Address, from, to exchange.Asset, rateFrom, rateTo *uint256.Int) (*exchange.RateEntry, error) {
	var entry *exchange.RateEntry
	_, err := r.commit(ctx, "set_rate", func() (*auditstore.Receipt, error) {
		var err error
		entry, err = r.engine.SetRate(caller, from, to, rateFrom, rateTo)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetRate returns the entry for the pair; unset pairs report false.
func (r *Runtime) GetRate(ctx context.Context, from, to exchange.Asset) (*exchange.RateEntry, bool, error) {
	var (
		entry *exchange.RateEntry
		ok    bool
	)
	err := r.read(ctx, "get_rate", func() error {
		var err error
		entry, ok, err = r.engine.GetRate(from, to)
		return err
	})
	return entry, ok, err
}

// Rates lists every registered entry.
func (r *Runtime) Rates(ctx context.Context) ([]*exchange.RateEntry, error) {
	var entries []*exchange.RateEntry
	err := r.read(ctx, "list_rates", func() error {
		var err error
		entries, err = r.engine.Rates()
		return err
	})
	return entries, err
}

// SetFee replaces the per-mille fee on behalf of caller.
func (r *Runtime) SetFee(ctx context.Context, caller ethcommon.Address, feeMille uint64) error {
	_, err := r.commit(ctx, "set_fee", func() (*auditstore.Receipt, error) {
		return nil, r.engine.SetFee(caller, feeMille)
	})
	return err
}

// GetFee returns the per-mille fee.
func (r *Runtime) GetFee(ctx context.Context) (uint64, error) {
	var fee uint64
	err := r.read(ctx, "get_fee", func() error {
		var err error
		fee, err = r.engine.GetFee()
		return err
	})
	return fee, err
}

// SetServiceCharge replaces the flat swap charge on behalf of caller.
func (r *Runtime) SetServiceCharge(ctx context.Context, caller ethcommon.Address, charge exchange.ServiceCharge) error {
	_, err := r.commit(ctx, "set_service_charge", func() (*auditstore.Receipt, error) {
		return nil, r.engine.SetServiceCharge(caller, charge)
	})
	return err
}

// GetServiceCharge returns the effective flat swap charge.
func (r *Runtime) GetServiceCharge(ctx context.Context) (exchange.ServiceCharge, error) {
	var charge exchange.ServiceCharge
	err := r.read(ctx, "get_service_charge", func() error {
		var err error
		charge, err = r.engine.GetServiceCharge()
		return err
	})
	return charge, err
}

// Quote prices a swap without moving funds.
func (r *Runtime) Quote(ctx context.Context, from, to exchange.Asset, amount *uint256.Int) (*exchange.Quote, error) {
	var quote *exchange.Quote
	err := r.read(ctx, "quote", func() error {
		var err error
		quote, err = r.engine.Quote(from, to, amount)
		return err
	})
	return quote, err
}

// Swap executes a swap and records its receipt.
func (r *Runtime) Swap(ctx context.Context, req exchange.SwapRequest) (*SwapOutcome, error) {
	var result *exchange.SwapResult
	id, err := r.commit(ctx, "swap", func() (*auditstore.Receipt, error) {
		var err error
		result, err = r.engine.Swap(req)
		if err != nil {
			return nil, err
		}
		return &auditstore.Receipt{
			Caller:     result.Caller.Hex(),
			From:       result.Pair.From.String(),
			To:         result.Pair.To.String(),
			AmountIn:   result.AmountIn.Dec(),
			RawOutput:  result.RawOutput.Dec(),
			FeeAmount:  result.FeeAmount.Dec(),
			NetOutput:  result.NetOutput.Dec(),
			FeeMille:   result.FeeMille,
			ChargePaid: result.ChargePaid.Dec(),
			Refunded:   result.Refunded.Dec(),
			ExecutedAt: r.now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordSwap(result.Pair.From.String(), result.Pair.To.String(), result.AmountIn.ToBig(), result.FeeAmount.ToBig())
	}
	r.publishReserve(result.Pair.From)
	r.publishReserve(result.Pair.To)
	if !result.Pair.From.IsNative() && !result.Pair.To.IsNative() {
		r.publishReserve(exchange.Native)
	}
	return &SwapOutcome{SwapResult: result, ReceiptID: id}, nil
}

// Balance returns account's holding of asset.
func (r *Runtime) Balance(ctx context.Context, asset exchange.Asset, account ethcommon.Address) (*uint256.Int, error) {
	var balance *uint256.Int
	err := r.read(ctx, "balance", func() error {
		var err error
		balance, err = r.engine.Reserves().BalanceOf(asset, account)
		return err
	})
	return balance, err
}

// Decimals returns the precision of asset.
func (r *Runtime) Decimals(ctx context.Context, asset exchange.Asset) (uint8, error) {
	var decimals uint8
	err := r.read(ctx, "decimals", func() error {
		var err error
		decimals, err = r.engine.Reserves().Decimals(asset)
		return err
	})
	return decimals, err
}

// Transfer moves caller's asset to recipient.
func (r *Runtime) Transfer(ctx context.Context, caller ethcommon.Address, asset exchange.Asset, recipient ethcommon.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ledger.ErrInvalidAmount
	}
	_, err := r.commit(ctx, "transfer", func() (*auditstore.Receipt, error) {
		var err error
		switch asset.Kind() {
		case exchange.KindNative:
			err = r.ledger.NativeTransfer(caller, recipient, amount)
		case exchange.KindFungible:
			token, _ := asset.Token()
			err = r.ledger.TokenTransfer(token, caller, recipient, amount)
		default:
			err = exchange.ErrInvalidAsset
		}
		if err != nil {
			return nil, err
		}
		r.buffer.Emit(ledger.WrapEvent(ledger.TransferEvent(asset.String(), caller, recipient, amount)))
		return nil, nil
	})
	if err == nil {
		r.publishReserve(asset)
	}
	return err
}

// Approve sets the amount spender may pull from caller's token balance.
func (r *Runtime) Approve(ctx context.Context, caller ethcommon.Address, asset exchange.Asset, spender ethcommon.Address, amount *uint256.Int) error {
	token, ok := asset.Token()
	if !ok {
		return exchange.ErrInvalidAsset
	}
	if amount == nil {
		return ledger.ErrInvalidAmount
	}
	_, err := r.commit(ctx, "approve", func() (*auditstore.Receipt, error) {
		if err := r.ledger.Approve(token, caller, spender, amount); err != nil {
			return nil, err
		}
		r.buffer.Emit(ledger.WrapEvent(ledger.ApprovalEvent(token, caller, spender, amount)))
		return nil, nil
	})
	return err
}

// Allowance returns what spender may still pull from owner.
func (r *Runtime) Allowance(ctx context.Context, asset exchange.Asset, owner, spender ethcommon.Address) (*uint256.Int, error) {
	token, ok := asset.Token()
	if !ok {
		return nil, exchange.ErrInvalidAsset
	}
	var allowance *uint256.Int
	err := r.read(ctx, "allowance", func() error {
		var err error
		allowance, err = r.ledger.Allowance(token, owner, spender)
		return err
	})
	return allowance, err
}

// Tokens lists registered tokens.
func (r *Runtime) Tokens(ctx context.Context) []ledger.Token {
	var tokens []ledger.Token
	_ = r.read(ctx, "tokens", func() error {
		tokens = r.ledger.Tokens()
		return nil
	})
	return tokens
}

// ResolveAsset accepts "native", a registered token symbol or an address.
func (r *Runtime) ResolveAsset(ref string) (exchange.Asset, error) {
	r.mu.Lock()
	token, ok := r.ledger.TokenBySymbol(ref)
	r.mu.Unlock()
	if ok && !strings.EqualFold(strings.TrimSpace(ref), "native") {
		return exchange.Fungible(token.Address), nil
	}
	return exchange.ParseAsset(ref)
}

// History returns committed swap receipts newest first.
func (r *Runtime) History(ctx context.Context, account string, limit int) ([]auditstore.Receipt, error) {
	if r.audit == nil {
		return nil, nil
	}
	var receipts []auditstore.Receipt
	err := r.read(ctx, "history", func() error {
		var err error
		receipts, err = r.audit.ListSwaps(ctx, account, limit)
		return err
	})
	return receipts, err
}

// Receipt returns one committed swap receipt by id.
func (r *Runtime) Receipt(ctx context.Context, id string) (auditstore.Receipt, error) {
	if r.audit == nil {
		return auditstore.Receipt{}, auditstore.ErrReceiptNotFound
	}
	var receipt auditstore.Receipt
	err := r.read(ctx, "receipt", func() error {
		var err error
		receipt, err = r.audit.GetSwap(ctx, id)
		return err
	})
	return receipt, err
}
