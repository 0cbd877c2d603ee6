package exchange

import ethcommon "github.com/ethereum/go-ethereum/common"

// Owner returns the administrator identity fixed at construction.
func (e *Engine) Owner() ethcommon.Address { return e.owner }

// IsOwner reports whether caller may mutate rates, fee and service charge.
// The zero address is never the owner.
func (e *Engine) IsOwner(caller ethcommon.Address) bool {
	if e == nil || e.owner == (ethcommon.Address{}) {
		return false
	}
	return caller == e.owner
}

// authorize runs before any argument validation so that a non-owner cannot
// learn which other check an input would fail.
func (e *Engine) authorize(caller ethcommon.Address) error {
	if !e.IsOwner(caller) {
		return ErrUnauthorized
	}
	return nil
}
