package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrUnknownToken is returned when a token address was never registered.
	ErrUnknownToken = errors.New("ledger: unknown token")
	// ErrTokenExists is returned when registering a token twice.
	ErrTokenExists = errors.New("ledger: token already registered")
	// ErrInsufficientBalance is returned when a sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrZeroAddress is returned when a transfer targets the zero address.
	ErrZeroAddress = errors.New("ledger: zero address")
	// ErrInvalidAmount is returned for nil amounts.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// AllowanceError reports a transferFrom that exceeds the spender's approval.
type AllowanceError struct {
	Token     ethcommon.Address
	Owner     ethcommon.Address
	Spender   ethcommon.Address
	Allowance *uint256.Int
	Requested *uint256.Int
}

func (e *AllowanceError) Error() string {
	return fmt.Sprintf("ledger: insufficient allowance on %s: %s approved %s to %s, %s requested",
		e.Token.Hex(), e.Owner.Hex(), e.Allowance.Dec(), e.Spender.Hex(), e.Requested.Dec())
}

// InsufficientAllowance marks the error for classification by the exchange.
func (e *AllowanceError) InsufficientAllowance() bool { return true }

// Token describes a registered fungible token.
type Token struct {
	Address  ethcommon.Address
	Symbol   string
	Decimals uint8
}

type allowanceKey struct {
	owner   ethcommon.Address
	spender ethcommon.Address
}

type tokenState struct {
	meta       Token
	balances   map[ethcommon.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
}

// Ledger is an in-memory native-value and fungible-token ledger with a
// revertible journal. It is not safe for concurrent use.
type Ledger struct {
	native  map[ethcommon.Address]*uint256.Int
	tokens  map[ethcommon.Address]*tokenState
	journal []func()
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		native: make(map[ethcommon.Address]*uint256.Int),
		tokens: make(map[ethcommon.Address]*tokenState),
	}
}

// RegisterToken adds a token to the registry.
func (l *Ledger) RegisterToken(token Token) error {
	if token.Address == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	if _, ok := l.tokens[token.Address]; ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, token.Address.Hex())
	}
	token.Symbol = strings.ToUpper(strings.TrimSpace(token.Symbol))
	l.tokens[token.Address] = &tokenState{
		meta:       token,
		balances:   make(map[ethcommon.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
	addr := token.Address
	l.journal = append(l.journal, func() { delete(l.tokens, addr) })
	return nil
}

// Tokens lists registered tokens ordered by address.
func (l *Ledger) Tokens() []Token {
	out := make([]Token, 0, len(l.tokens))
	for _, state := range l.tokens {
		out = append(out, state.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// TokenBySymbol resolves a registered token by its symbol.
func (l *Ledger) TokenBySymbol(symbol string) (Token, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	for _, state := range l.tokens {
		if state.meta.Symbol == normalized {
			return state.meta, true
		}
	}
	return Token{}, false
}

// CreditNative mints native value to account. Used for genesis allocation.
func (l *Ledger) CreditNative(account ethcommon.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	current := balanceOf(l.native, account)
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("ledger: native balance overflow")
	}
	l.setNative(account, next)
	return nil
}

// MintToken credits token units to account. Used for genesis allocation.
func (l *Ledger) MintToken(token, account ethcommon.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	state, err := l.token(token)
	if err != nil {
		return err
	}
	current := balanceOf(state.balances, account)
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("ledger: token balance overflow")
	}
	l.setTokenBalance(state, account, next)
	return nil
}

// NativeBalance returns the native value held by account.
func (l *Ledger) NativeBalance(account ethcommon.Address) (*uint256.Int, error) {
	return new(uint256.Int).Set(balanceOf(l.native, account)), nil
}

// NativeTransfer moves native value between accounts.
func (l *Ledger) NativeTransfer(from, to ethcommon.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if to == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	fromBal := balanceOf(l.native, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: native %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	l.setNative(from, new(uint256.Int).Sub(fromBal, amount))
	l.setNative(to, new(uint256.Int).Add(balanceOf(l.native, to), amount))
	return nil
}

// TokenDecimals returns the decimal precision of the token.
func (l *Ledger) TokenDecimals(token ethcommon.Address) (uint8, error) {
	state, err := l.token(token)
	if err != nil {
		return 0, err
	}
	return state.meta.Decimals, nil
}

// TokenBalanceOf returns the token units held by owner.
func (l *Ledger) TokenBalanceOf(token, owner ethcommon.Address) (*uint256.Int, error) {
	state, err := l.token(token)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(balanceOf(state.balances, owner)), nil
}

// TokenTransfer moves token units from sender to recipient.
func (l *Ledger) TokenTransfer(token, sender, recipient ethcommon.Address, amount *uint256.Int) error {
	state, err := l.token(token)
	if err != nil {
		return err
	}
	return l.moveToken(state, sender, recipient, amount)
}

// Approve sets the amount spender may pull from owner.
func (l *Ledger) Approve(token, owner, spender ethcommon.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if spender == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	state, err := l.token(token)
	if err != nil {
		return err
	}
	l.setAllowance(state, allowanceKey{owner: owner, spender: spender}, new(uint256.Int).Set(amount))
	return nil
}

// Allowance returns the amount spender may still pull from owner.
func (l *Ledger) Allowance(token, owner, spender ethcommon.Address) (*uint256.Int, error) {
	state, err := l.token(token)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(balanceOf(state.allowances, allowanceKey{owner: owner, spender: spender})), nil
}

// TokenTransferFrom moves token units from owner to recipient on behalf of
// spender, consuming the spender's allowance.
func (l *Ledger) TokenTransferFrom(token, spender, owner, recipient ethcommon.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	state, err := l.token(token)
	if err != nil {
		return err
	}
	key := allowanceKey{owner: owner, spender: spender}
	allowed := balanceOf(state.allowances, key)
	if allowed.Lt(amount) {
		return &AllowanceError{
			Token:     token,
			Owner:     owner,
			Spender:   spender,
			Allowance: new(uint256.Int).Set(allowed),
			Requested: new(uint256.Int).Set(amount),
		}
	}
	snap := l.Snapshot()
	l.setAllowance(state, key, new(uint256.Int).Sub(allowed, amount))
	if err := l.moveToken(state, owner, recipient, amount); err != nil {
		l.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// Snapshot returns an identifier for the current journal position.
func (l *Ledger) Snapshot() int { return len(l.journal) }

// RevertToSnapshot undoes every mutation recorded after the snapshot.
func (l *Ledger) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	if id < len(l.journal) {
		l.journal = l.journal[:id]
	}
}

// Finalise discards the journal, making every mutation so far permanent.
func (l *Ledger) Finalise() { l.journal = l.journal[:0] }

func (l *Ledger) token(addr ethcommon.Address) (*tokenState, error) {
	state, ok := l.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return state, nil
}

func (l *Ledger) moveToken(state *tokenState, from, to ethcommon.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if to == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	fromBal := balanceOf(state.balances, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s %s has %s, needs %s", ErrInsufficientBalance, state.meta.Symbol, from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	l.setTokenBalance(state, from, new(uint256.Int).Sub(fromBal, amount))
	l.setTokenBalance(state, to, new(uint256.Int).Add(balanceOf(state.balances, to), amount))
	return nil
}

func (l *Ledger) setNative(account ethcommon.Address, value *uint256.Int) {
	setJournaled(l, l.native, account, value)
}

func (l *Ledger) setTokenBalance(state *tokenState, account ethcommon.Address, value *uint256.Int) {
	setJournaled(l, state.balances, account, value)
}

func (l *Ledger) setAllowance(state *tokenState, key allowanceKey, value *uint256.Int) {
	setJournaled(l, state.allowances, key, value)
}

func setJournaled[K comparable](l *Ledger, m map[K]*uint256.Int, key K, value *uint256.Int) {
	prev, existed := m[key]
	m[key] = value
	l.journal = append(l.journal, func() {
		if existed {
			m[key] = prev
			return
		}
		delete(m, key)
	})
}

func balanceOf[K comparable](m map[K]*uint256.Int, key K) *uint256.Int {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return new(uint256.Int)
}
