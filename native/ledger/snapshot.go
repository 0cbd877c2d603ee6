package ledger

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Snapshot is the flattened, deterministic form of a ledger used for
// persistence. Every slice is ordered by address.
type Snapshot struct {
	Native []BalanceRecord
	Tokens []TokenRecord
}

// BalanceRecord is a single account balance.
type BalanceRecord struct {
	Account ethcommon.Address
	Amount  *big.Int
}

// AllowanceRecord is a single owner to spender approval.
type AllowanceRecord struct {
	Owner   ethcommon.Address
	Spender ethcommon.Address
	Amount  *big.Int
}

// TokenRecord is a registered token with its balances and approvals.
type TokenRecord struct {
	Address    ethcommon.Address
	Symbol     string
	Decimals   uint8
	Balances   []BalanceRecord
	Allowances []AllowanceRecord
}

// Export flattens the current ledger contents. Zero balances are omitted.
func (l *Ledger) Export() *Snapshot {
	snap := &Snapshot{Native: exportBalances(l.native)}
	for _, token := range l.Tokens() {
		state := l.tokens[token.Address]
		record := TokenRecord{
			Address:  token.Address,
			Symbol:   token.Symbol,
			Decimals: token.Decimals,
			Balances: exportBalances(state.balances),
		}
		for key, amount := range state.allowances {
			if amount == nil || amount.IsZero() {
				continue
			}
			record.Allowances = append(record.Allowances, AllowanceRecord{Owner: key.owner, Spender: key.spender, Amount: amount.ToBig()})
		}
		sort.Slice(record.Allowances, func(i, j int) bool {
			a, b := record.Allowances[i], record.Allowances[j]
			if c := bytes.Compare(a.Owner[:], b.Owner[:]); c != 0 {
				return c < 0
			}
			return bytes.Compare(a.Spender[:], b.Spender[:]) < 0
		})
		snap.Tokens = append(snap.Tokens, record)
	}
	return snap
}

// Import replaces the ledger contents with the snapshot and clears the journal.
func (l *Ledger) Import(snap *Snapshot) error {
	fresh := New()
	if snap != nil {
		for _, rec := range snap.Native {
			amount, err := importAmount(rec.Amount)
			if err != nil {
				return fmt.Errorf("native %s: %w", rec.Account.Hex(), err)
			}
			fresh.native[rec.Account] = amount
		}
		for _, tok := range snap.Tokens {
			if err := fresh.RegisterToken(Token{Address: tok.Address, Symbol: tok.Symbol, Decimals: tok.Decimals}); err != nil {
				return err
			}
			state := fresh.tokens[tok.Address]
			for _, rec := range tok.Balances {
				amount, err := importAmount(rec.Amount)
				if err != nil {
					return fmt.Errorf("token %s balance %s: %w", tok.Symbol, rec.Account.Hex(), err)
				}
				state.balances[rec.Account] = amount
			}
			for _, rec := range tok.Allowances {
				amount, err := importAmount(rec.Amount)
				if err != nil {
					return fmt.Errorf("token %s allowance %s: %w", tok.Symbol, rec.Owner.Hex(), err)
				}
				state.allowances[allowanceKey{owner: rec.Owner, spender: rec.Spender}] = amount
			}
		}
	}
	l.native = fresh.native
	l.tokens = fresh.tokens
	l.journal = nil
	return nil
}

func exportBalances(m map[ethcommon.Address]*uint256.Int) []BalanceRecord {
	out := make([]BalanceRecord, 0, len(m))
	for account, amount := range m {
		if amount == nil || amount.IsZero() {
			continue
		}
		out = append(out, BalanceRecord{Account: account, Amount: amount.ToBig()})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Account[:], out[j].Account[:]) < 0
	})
	return out
}

func importAmount(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount")
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return out, nil
}
