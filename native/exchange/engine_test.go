package exchange

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rateswap/core/events"
	"rateswap/native/ledger"
)

var (
	ownerAddr  = ethcommon.HexToAddress("0x00000000000000000000000000000000000000a1")
	engineAddr = ethcommon.HexToAddress("0x00000000000000000000000000000000000000e1")
	userAddr   = ethcommon.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokenAAddr = ethcommon.HexToAddress("0x000000000000000000000000000000000000aaaa")
	tokenBAddr = ethcommon.HexToAddress("0x000000000000000000000000000000000000bbbb")

	tokenA = Fungible(tokenAAddr)
	tokenB = Fungible(tokenBAddr)
)

func units(whole uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(whole), uint256.NewInt(1_000_000_000_000_000_000))
}

func mustDec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

// faultyLedger fails payouts to the user once armed.
type faultyLedger struct {
	*ledger.Ledger
	failTokenPayout bool
}

func (f *faultyLedger) TokenTransfer(token, sender, recipient ethcommon.Address, amount *uint256.Int) error {
	if f.failTokenPayout {
		return errors.New("token paused")
	}
	return f.Ledger.TokenTransfer(token, sender, recipient, amount)
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

type fixture struct {
	engine *Engine
	ledger *faultyLedger
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := ledger.New()
	for _, tok := range []ledger.Token{{Address: tokenAAddr, Symbol: "TKA", Decimals: 18}, {Address: tokenBAddr, Symbol: "TKB", Decimals: 18}} {
		if err := l.RegisterToken(tok); err != nil {
			t.Fatalf("register token: %v", err)
		}
		if err := l.MintToken(tok.Address, engineAddr, units(50)); err != nil {
			t.Fatalf("mint reserve: %v", err)
		}
		if err := l.MintToken(tok.Address, userAddr, units(10)); err != nil {
			t.Fatalf("mint user: %v", err)
		}
	}
	if err := l.CreditNative(engineAddr, units(50)); err != nil {
		t.Fatalf("credit engine: %v", err)
	}
	if err := l.CreditNative(userAddr, units(10)); err != nil {
		t.Fatalf("credit user: %v", err)
	}
	l.Finalise()

	wrapped := &faultyLedger{Ledger: l}
	rec := &recorder{}
	engine := NewEngine(ownerAddr)
	engine.SetReserves(NewReserves(wrapped, engineAddr))
	engine.SetEmitter(rec)
	return &fixture{engine: engine, ledger: wrapped, events: rec}
}

func (f *fixture) balance(t *testing.T, asset Asset, account ethcommon.Address) *uint256.Int {
	t.Helper()
	bal, err := f.engine.Reserves().BalanceOf(asset, account)
	if err != nil {
		t.Fatalf("balance %s: %v", asset, err)
	}
	return bal
}

func (f *fixture) approve(t *testing.T, token ethcommon.Address, amount *uint256.Int) {
	t.Helper()
	if err := f.ledger.Approve(token, userAddr, engineAddr, amount); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func TestSetRateRoundTrip(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, tokenA, tokenB, uint256.NewInt(2), uint256.NewInt(5)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	entry, ok, err := f.engine.GetRate(tokenA, tokenB)
	if err != nil || !ok {
		t.Fatalf("get rate: ok=%v err=%v", ok, err)
	}
	if entry.RateFrom.Uint64() != 2 || entry.RateTo.Uint64() != 5 {
		t.Fatalf("unexpected entry %s/%s", entry.RateFrom, entry.RateTo)
	}
	again, _, _ := f.engine.GetRate(tokenA, tokenB)
	if !again.RateFrom.Eq(entry.RateFrom) || !again.RateTo.Eq(entry.RateTo) {
		t.Fatalf("reads are not idempotent")
	}
	inverse, ok, err := f.engine.GetRate(tokenB, tokenA)
	if err != nil {
		t.Fatalf("get inverse: %v", err)
	}
	if ok || !inverse.RateFrom.IsZero() || !inverse.RateTo.IsZero() {
		t.Fatalf("inverse pair must stay unset")
	}
	if _, err := f.engine.SetRate(ownerAddr, tokenA, tokenB, uint256.NewInt(7), uint256.NewInt(1)); err != nil {
		t.Fatalf("overwrite rate: %v", err)
	}
	entry, _, _ = f.engine.GetRate(tokenA, tokenB)
	if entry.RateFrom.Uint64() != 7 || entry.RateTo.Uint64() != 1 {
		t.Fatalf("overwrite not applied")
	}
	rates, err := f.engine.Rates()
	if err != nil || len(rates) != 1 {
		t.Fatalf("expected one listed rate, got %d (%v)", len(rates), err)
	}
}

func TestSetRateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name     string
		caller   ethcommon.Address
		from, to Asset
		rf, rt   *uint256.Int
		want     error
	}{
		{"non-owner valid args", userAddr, tokenA, tokenB, uint256.NewInt(1), uint256.NewInt(1), ErrUnauthorized},
		{"non-owner zero rate", userAddr, tokenA, tokenB, uint256.NewInt(0), uint256.NewInt(1), ErrUnauthorized},
		{"non-owner identical", userAddr, tokenA, tokenA, uint256.NewInt(1), uint256.NewInt(1), ErrUnauthorized},
		{"zero caller", ethcommon.Address{}, tokenA, tokenB, uint256.NewInt(1), uint256.NewInt(1), ErrUnauthorized},
		{"invalid asset", ownerAddr, Asset{}, tokenB, uint256.NewInt(1), uint256.NewInt(1), ErrInvalidAsset},
		{"zero rate from", ownerAddr, tokenA, tokenB, uint256.NewInt(0), uint256.NewInt(1), ErrInvalidRate},
		{"zero rate to", ownerAddr, tokenA, tokenB, uint256.NewInt(1), uint256.NewInt(0), ErrInvalidRate},
		{"nil rate", ownerAddr, tokenA, tokenB, nil, uint256.NewInt(1), ErrInvalidRate},
		{"identical assets", ownerAddr, Native, Native, uint256.NewInt(1), uint256.NewInt(1), ErrIdenticalAssets},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.SetRate(tc.caller, tc.from, tc.to, tc.rf, tc.rt)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if rates, _ := f.engine.Rates(); len(rates) != 0 {
		t.Fatalf("rejected writes must not persist, got %d entries", len(rates))
	}
	if len(f.events.events) != 0 {
		t.Fatalf("rejected writes must not emit events")
	}
}

func TestSetFeeBounds(t *testing.T) {
	f := newFixture(t)
	if fee, err := f.engine.GetFee(); err != nil || fee != 0 {
		t.Fatalf("unset fee should read 0, got %d (%v)", fee, err)
	}
	for _, fee := range []uint64{0, 99} {
		if err := f.engine.SetFee(ownerAddr, fee); err != nil {
			t.Fatalf("set fee %d: %v", fee, err)
		}
		got, err := f.engine.GetFee()
		if err != nil || got != fee {
			t.Fatalf("expected fee %d, got %d (%v)", fee, got, err)
		}
	}
	if err := f.engine.SetFee(ownerAddr, 100); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if err := f.engine.SetFee(userAddr, 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before fee validation, got %v", err)
	}
	if got, _ := f.engine.GetFee(); got != 99 {
		t.Fatalf("rejected fee writes must not persist, got %d", got)
	}
}

func TestServiceChargeDefaultsAndOwnerOnly(t *testing.T) {
	f := newFixture(t)
	charge, err := f.engine.GetServiceCharge()
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if charge.Minimum.Uint64() != 1_000_000_000_000_000 || charge.RefundExcess {
		t.Fatalf("unexpected default charge %+v", charge)
	}
	if err := f.engine.SetServiceCharge(userAddr, ServiceCharge{Minimum: uint256.NewInt(1)}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetServiceCharge(ownerAddr, ServiceCharge{Minimum: uint256.NewInt(5), RefundExcess: true}); err != nil {
		t.Fatalf("set charge: %v", err)
	}
	charge, _ = f.engine.GetServiceCharge()
	if charge.Minimum.Uint64() != 5 || !charge.RefundExcess {
		t.Fatalf("charge not stored: %+v", charge)
	}
}

func TestSwapScenario(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, tokenB, tokenA, uint256.NewInt(3), uint256.NewInt(1)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := f.engine.SetFee(ownerAddr, 1); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	f.approve(t, tokenBAddr, units(10))
	charge := uint256.NewInt(1_000_000_000_000_000)

	result, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(10), AttachedValue: charge})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if got := result.RawOutput.Dec(); got != "3333333333333333333" {
		t.Fatalf("unexpected raw output %s", got)
	}
	if got := result.NetOutput.Dec(); got != "3329999999999999999" {
		t.Fatalf("unexpected net output %s", got)
	}
	if got := result.FeeAmount.Dec(); got != "3333333333333334" {
		t.Fatalf("unexpected fee %s", got)
	}

	if got := f.balance(t, tokenB, engineAddr); !got.Eq(units(60)) {
		t.Fatalf("engine B reserve: %s", got.Dec())
	}
	wantA := new(uint256.Int).Sub(units(50), result.NetOutput)
	if got := f.balance(t, tokenA, engineAddr); !got.Eq(wantA) {
		t.Fatalf("engine A reserve: %s", got.Dec())
	}
	if got := f.balance(t, tokenA, userAddr); !got.Eq(new(uint256.Int).Add(units(10), result.NetOutput)) {
		t.Fatalf("user A balance: %s", got.Dec())
	}
	if got := f.balance(t, tokenB, userAddr); !got.IsZero() {
		t.Fatalf("user B balance: %s", got.Dec())
	}
	if got := f.balance(t, Native, engineAddr); !got.Eq(new(uint256.Int).Add(units(50), charge)) {
		t.Fatalf("engine native reserve: %s", got.Dec())
	}
	if evts := f.events.types(); len(evts) != 3 || evts[2] != EventTypeSwapExecuted {
		t.Fatalf("unexpected events %v", evts)
	}
	payload := events.Attributes(f.events.events[2])
	if payload.Attr("amountOut") != "3329999999999999999" || payload.Attr("from") != tokenB.String() {
		t.Fatalf("unexpected swap event %+v", payload.Attributes)
	}
}

func TestSwapMatchesQuote(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, tokenA, tokenB, uint256.NewInt(7), uint256.NewInt(3)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := f.engine.SetFee(ownerAddr, 25); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	amount := mustDec(t, "1234567890123456789")
	quote, err := f.engine.Quote(tokenA, tokenB, amount)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	f.approve(t, tokenAAddr, amount)
	result, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenA, To: tokenB, Amount: amount, AttachedValue: quote.RequiredValue})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !result.NetOutput.Eq(quote.NetOutput) {
		t.Fatalf("swap output %s differs from quote %s", result.NetOutput.Dec(), quote.NetOutput.Dec())
	}
	raw := new(uint256.Int).Div(new(uint256.Int).Mul(amount, uint256.NewInt(3)), uint256.NewInt(7))
	net := new(uint256.Int).Div(new(uint256.Int).Mul(raw, uint256.NewInt(975)), uint256.NewInt(1000))
	if !result.NetOutput.Eq(net) {
		t.Fatalf("expected net %s, got %s", net.Dec(), result.NetOutput.Dec())
	}
}

func TestSwapRejectionsLeaveBalancesUntouched(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, tokenB, tokenA, uint256.NewInt(1), uint256.NewInt(10)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	f.approve(t, tokenBAddr, units(10))
	charge := uint256.NewInt(1_000_000_000_000_000)

	cases := []struct {
		name string
		req  SwapRequest
		want error
	}{
		{"zero amount", SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: new(uint256.Int), AttachedValue: charge}, ErrZeroAmount},
		{"invalid asset", SwapRequest{Caller: userAddr, From: Asset{}, To: tokenA, Amount: units(1), AttachedValue: charge}, ErrInvalidAsset},
		{"unknown pair", SwapRequest{Caller: userAddr, From: tokenA, To: tokenB, Amount: units(1), AttachedValue: charge}, ErrUnknownPair},
		{"missing charge", SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(1), AttachedValue: uint256.NewInt(1)}, ErrInsufficientFeePayment},
		{"reserve exceeded", SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(6), AttachedValue: charge}, ErrInsufficientReserve},
		{"large amount", SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: mustDec(t, "10000000000000000001"), AttachedValue: charge}, ErrInsufficientReserve},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Swap(tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := f.balance(t, tokenA, engineAddr); !got.Eq(units(50)) {
				t.Fatalf("engine A reserve changed: %s", got.Dec())
			}
			if got := f.balance(t, tokenB, userAddr); !got.Eq(units(10)) {
				t.Fatalf("user B balance changed: %s", got.Dec())
			}
			if got := f.balance(t, Native, userAddr); !got.Eq(units(10)) {
				t.Fatalf("user native balance changed: %s", got.Dec())
			}
		})
	}
	if evts := f.events.types(); len(evts) != 1 {
		t.Fatalf("rejected swaps must not emit events, got %v", evts)
	}
}

func TestSwapsDrainReserveInSubmissionOrder(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, tokenB, tokenA, uint256.NewInt(1), uint256.NewInt(6)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := f.engine.SetFee(ownerAddr, 0); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	f.approve(t, tokenBAddr, units(10))
	charge := uint256.NewInt(1_000_000_000_000_000)

	// 5 B pays 30 A, leaving 20 A for the next caller.
	if _, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(5), AttachedValue: charge}); err != nil {
		t.Fatalf("first swap: %v", err)
	}
	if got := f.balance(t, tokenA, engineAddr); !got.Eq(units(20)) {
		t.Fatalf("engine A reserve after first swap: %s", got.Dec())
	}

	// Affordable against the opening 50 A, not against what is left.
	_, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(4), AttachedValue: charge})
	if !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("expected ErrInsufficientReserve, got %v", err)
	}
	if got := f.balance(t, tokenA, engineAddr); !got.Eq(units(20)) {
		t.Fatalf("engine A reserve changed by rejected swap: %s", got.Dec())
	}
	if got := f.balance(t, tokenB, userAddr); !got.Eq(units(5)) {
		t.Fatalf("user B balance changed by rejected swap: %s", got.Dec())
	}
	if got := f.balance(t, Native, userAddr); !got.Eq(new(uint256.Int).Sub(units(10), charge)) {
		t.Fatalf("user native balance: %s", got.Dec())
	}

	// 3 B pays 18 A, which still fits.
	if _, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(3), AttachedValue: charge}); err != nil {
		t.Fatalf("third swap: %v", err)
	}
	if got := f.balance(t, tokenA, engineAddr); !got.Eq(units(2)) {
		t.Fatalf("engine A reserve after third swap: %s", got.Dec())
	}
	if got := f.balance(t, tokenA, userAddr); !got.Eq(units(58)) {
		t.Fatalf("user A balance: %s", got.Dec())
	}
}

func TestSwapAllowanceFailureReverts(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, tokenB, tokenA, uint256.NewInt(1), uint256.NewInt(1)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	f.approve(t, tokenBAddr, units(1))
	_, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(2), AttachedValue: uint256.NewInt(1_000_000_000_000_000)})
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if got := f.balance(t, Native, userAddr); !got.Eq(units(10)) {
		t.Fatalf("attached value must be returned on revert, got %s", got.Dec())
	}
	if got := f.balance(t, Native, engineAddr); !got.Eq(units(50)) {
		t.Fatalf("engine native reserve changed: %s", got.Dec())
	}
}

func TestSwapPayoutFailureReverts(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, tokenB, tokenA, uint256.NewInt(1), uint256.NewInt(1)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	f.approve(t, tokenBAddr, units(2))
	f.ledger.failTokenPayout = true
	_, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenB, To: tokenA, Amount: units(2), AttachedValue: uint256.NewInt(1_000_000_000_000_000)})
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := f.balance(t, tokenB, userAddr); !got.Eq(units(10)) {
		t.Fatalf("inbound pull must be reverted, got %s", got.Dec())
	}
	if got := f.balance(t, tokenB, engineAddr); !got.Eq(units(50)) {
		t.Fatalf("engine B reserve changed: %s", got.Dec())
	}
	allowance, err := f.ledger.Allowance(tokenBAddr, userAddr, engineAddr)
	if err != nil || !allowance.Eq(units(2)) {
		t.Fatalf("allowance must be restored, got %v (%v)", allowance, err)
	}
}

func TestSwapNativeInput(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.SetRate(ownerAddr, Native, tokenA, uint256.NewInt(1), uint256.NewInt(2)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	charge := uint256.NewInt(1_000_000_000_000_000)
	_, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: Native, To: tokenA, Amount: units(1), AttachedValue: units(1)})
	if !errors.Is(err, ErrInsufficientFeePayment) {
		t.Fatalf("principal without charge must be rejected, got %v", err)
	}
	attached := new(uint256.Int).Add(units(1), charge)
	result, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: Native, To: tokenA, Amount: units(1), AttachedValue: attached})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !result.NetOutput.Eq(units(2)) {
		t.Fatalf("unexpected output %s", result.NetOutput.Dec())
	}
	if !result.ChargePaid.Eq(charge) || !result.Refunded.IsZero() {
		t.Fatalf("unexpected charge accounting %s/%s", result.ChargePaid.Dec(), result.Refunded.Dec())
	}
	if got := f.balance(t, Native, userAddr); !got.Eq(new(uint256.Int).Sub(units(10), attached)) {
		t.Fatalf("user native balance: %s", got.Dec())
	}
}

func TestSwapExcessAttachedValue(t *testing.T) {
	charge := uint256.NewInt(1_000_000_000_000_000)
	excess := new(uint256.Int).Add(charge, uint256.NewInt(500))

	t.Run("retained", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.engine.SetRate(ownerAddr, tokenA, Native, uint256.NewInt(1), uint256.NewInt(1)); err != nil {
			t.Fatalf("set rate: %v", err)
		}
		f.approve(t, tokenAAddr, units(1))
		result, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenA, To: Native, Amount: units(1), AttachedValue: excess})
		if err != nil {
			t.Fatalf("swap: %v", err)
		}
		if !result.ChargePaid.Eq(excess) || !result.Refunded.IsZero() {
			t.Fatalf("excess should be retained: %s/%s", result.ChargePaid.Dec(), result.Refunded.Dec())
		}
		want := new(uint256.Int).Add(units(10), units(1))
		want.Sub(want, excess)
		if got := f.balance(t, Native, userAddr); !got.Eq(want) {
			t.Fatalf("user native balance: %s want %s", got.Dec(), want.Dec())
		}
	})

	t.Run("refunded", func(t *testing.T) {
		f := newFixture(t)
		if err := f.engine.SetServiceCharge(ownerAddr, ServiceCharge{Minimum: charge, RefundExcess: true}); err != nil {
			t.Fatalf("set charge: %v", err)
		}
		if _, err := f.engine.SetRate(ownerAddr, tokenA, tokenB, uint256.NewInt(1), uint256.NewInt(1)); err != nil {
			t.Fatalf("set rate: %v", err)
		}
		f.approve(t, tokenAAddr, units(1))
		result, err := f.engine.Swap(SwapRequest{Caller: userAddr, From: tokenA, To: tokenB, Amount: units(1), AttachedValue: excess})
		if err != nil {
			t.Fatalf("swap: %v", err)
		}
		if !result.ChargePaid.Eq(charge) || result.Refunded.Uint64() != 500 {
			t.Fatalf("excess should be refunded: %s/%s", result.ChargePaid.Dec(), result.Refunded.Dec())
		}
		if got := f.balance(t, Native, userAddr); !got.Eq(new(uint256.Int).Sub(units(10), charge)) {
			t.Fatalf("user native balance: %s", got.Dec())
		}
	})
}

func TestEngineWithoutReserves(t *testing.T) {
	engine := NewEngine(ownerAddr)
	if _, err := engine.Quote(tokenA, tokenB, units(1)); err == nil {
		t.Fatalf("expected error without reserves")
	}
	if engine.IsOwner(ethcommon.Address{}) {
		t.Fatalf("zero address must never be owner")
	}
	if NewEngine(ethcommon.Address{}).IsOwner(ethcommon.Address{}) {
		t.Fatalf("zero owner must never match")
	}
}
