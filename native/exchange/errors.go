package exchange

import "errors"

var (
	// ErrUnauthorized indicates a non-owner attempted an owner-only mutation.
	ErrUnauthorized = errors.New("exchange: unauthorized")
	// ErrInvalidRate indicates a zero rate component.
	ErrInvalidRate = errors.New("exchange: invalid rate")
	// ErrInvalidFee indicates a per-mille fee outside [0, 100).
	ErrInvalidFee = errors.New("exchange: invalid fee")
	// ErrIdenticalAssets indicates a rate registration where from == to.
	ErrIdenticalAssets = errors.New("exchange: identical assets")
	// ErrZeroAmount indicates a swap of zero units.
	ErrZeroAmount = errors.New("exchange: zero amount")
	// ErrUnknownPair indicates no rate is registered for the requested direction.
	ErrUnknownPair = errors.New("exchange: unknown pair")
	// ErrInsufficientFeePayment indicates the attached native value is below the
	// service charge (plus principal for native inputs).
	ErrInsufficientFeePayment = errors.New("exchange: insufficient fee payment")
	// ErrInsufficientReserve indicates the engine cannot pay out the net output.
	ErrInsufficientReserve = errors.New("exchange: insufficient reserve")
	// ErrInsufficientAllowance indicates the token ledger refused the inbound pull
	// because the caller's approval does not cover the amount.
	ErrInsufficientAllowance = errors.New("exchange: insufficient allowance")
	// ErrTransferFailed indicates an upstream ledger rejected a transfer.
	ErrTransferFailed = errors.New("exchange: transfer failed")
	// ErrInvalidAsset indicates a zero-valued or malformed asset identifier.
	ErrInvalidAsset = errors.New("exchange: invalid asset")
	// ErrOverflow indicates an intermediate amount exceeded 256 bits.
	ErrOverflow = errors.New("exchange: amount overflow")

	errNilState    = errors.New("exchange: state not configured")
	errNilReserves = errors.New("exchange: reserves not configured")
)
