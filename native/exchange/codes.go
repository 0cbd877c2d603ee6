package exchange

import "errors"

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidRate, "invalid_rate"},
	{ErrInvalidFee, "invalid_fee"},
	{ErrIdenticalAssets, "identical_assets"},
	{ErrZeroAmount, "zero_amount"},
	{ErrUnknownPair, "unknown_pair"},
	{ErrInsufficientFeePayment, "insufficient_fee_payment"},
	{ErrInsufficientReserve, "insufficient_reserve"},
	{ErrInsufficientAllowance, "insufficient_allowance"},
	{ErrTransferFailed, "transfer_failed"},
	{ErrInvalidAsset, "invalid_asset"},
	{ErrOverflow, "overflow"},
}

// ErrorCode returns a stable snake_case identifier for engine errors, "" for
// nil and "internal" for anything the engine did not raise.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, candidate := range errorCodes {
		if errors.Is(err, candidate.err) {
			return candidate.code
		}
	}
	return "internal"
}
