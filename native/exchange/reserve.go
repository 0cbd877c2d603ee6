package exchange

import (
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeDecimals is the decimal precision of the native value asset.
const NativeDecimals uint8 = 18

// NativeLedger is the native-value capability set the engine consumes.
type NativeLedger interface {
	NativeBalance(account ethcommon.Address) (*uint256.Int, error)
	NativeTransfer(from, to ethcommon.Address, amount *uint256.Int) error
}

// TokenLedger is the fungible-token capability set the engine consumes. The
// sender of Transfer and the spender of TransferFrom are explicit.
type TokenLedger interface {
	TokenDecimals(token ethcommon.Address) (uint8, error)
	TokenBalanceOf(token, owner ethcommon.Address) (*uint256.Int, error)
	TokenTransfer(token, sender, recipient ethcommon.Address, amount *uint256.Int) error
	TokenTransferFrom(token, spender, owner, recipient ethcommon.Address, amount *uint256.Int) error
}

// Journal makes a sequence of ledger mutations revertible.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Ledger bundles the collaborators backing the reserves.
type Ledger interface {
	NativeLedger
	TokenLedger
	Journal
}

// allowanceError is implemented by ledger errors raised when an approval does
// not cover a pull.
type allowanceError interface {
	InsufficientAllowance() bool
}

func isAllowanceError(err error) bool {
	var target allowanceError
	return errors.As(err, &target) && target.InsufficientAllowance()
}

// Reserves is the engine's uniform view over its holdings of any asset.
type Reserves struct {
	ledger  Ledger
	account ethcommon.Address
}

// NewReserves binds the ledger to the engine's own account.
func NewReserves(ledger Ledger, account ethcommon.Address) *Reserves {
	return &Reserves{ledger: ledger, account: account}
}

// Account returns the engine account holding the reserves.
func (r *Reserves) Account() ethcommon.Address { return r.account }

// Balance returns the engine's current reserve of the asset.
func (r *Reserves) Balance(asset Asset) (*uint256.Int, error) {
	return r.BalanceOf(asset, r.account)
}

// BalanceOf returns the supplied account's holding of the asset.
func (r *Reserves) BalanceOf(asset Asset, account ethcommon.Address) (*uint256.Int, error) {
	switch asset.Kind() {
	case KindNative:
		return r.ledger.NativeBalance(account)
	case KindFungible:
		token, _ := asset.Token()
		return r.ledger.TokenBalanceOf(token, account)
	default:
		return nil, ErrInvalidAsset
	}
}

// Decimals returns the decimal precision of the asset.
func (r *Reserves) Decimals(asset Asset) (uint8, error) {
	switch asset.Kind() {
	case KindNative:
		return NativeDecimals, nil
	case KindFungible:
		token, _ := asset.Token()
		return r.ledger.TokenDecimals(token)
	default:
		return 0, ErrInvalidAsset
	}
}

// Pull moves amount of asset from payer into the engine. Fungible pulls spend
// the payer's prior approval of the engine account.
func (r *Reserves) Pull(asset Asset, payer ethcommon.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	var err error
	switch asset.Kind() {
	case KindNative:
		err = r.ledger.NativeTransfer(payer, r.account, amount)
	case KindFungible:
		token, _ := asset.Token()
		err = r.ledger.TokenTransferFrom(token, r.account, payer, r.account, amount)
	default:
		return ErrInvalidAsset
	}
	if err == nil {
		return nil
	}
	if isAllowanceError(err) {
		return fmt.Errorf("%w: %v", ErrInsufficientAllowance, err)
	}
	return fmt.Errorf("%w: pull %s: %v", ErrTransferFailed, asset, err)
}

// Pay moves amount of asset from the engine to recipient.
func (r *Reserves) Pay(asset Asset, recipient ethcommon.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	var err error
	switch asset.Kind() {
	case KindNative:
		err = r.ledger.NativeTransfer(r.account, recipient, amount)
	case KindFungible:
		token, _ := asset.Token()
		err = r.ledger.TokenTransfer(token, r.account, recipient, amount)
	default:
		return ErrInvalidAsset
	}
	if err != nil {
		return fmt.Errorf("%w: pay %s: %v", ErrTransferFailed, asset, err)
	}
	return nil
}

func (r *Reserves) snapshot() int { return r.ledger.Snapshot() }

func (r *Reserves) revert(id int) { r.ledger.RevertToSnapshot(id) }
