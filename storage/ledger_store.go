package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rateswap/native/ledger"
)

var ledgerSnapshotKey = []byte("ledger/snapshot")

// LedgerStore persists whole-ledger snapshots.
type LedgerStore struct {
	db Database
}

// NewLedgerStore binds the store to db.
func NewLedgerStore(db Database) *LedgerStore {
	return &LedgerStore{db: db}
}

// Load returns the persisted snapshot, or false when none was saved.
func (s *LedgerStore) Load() (*ledger.Snapshot, bool, error) {
	raw, err := s.db.Get(ledgerSnapshotKey)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snap ledger.Snapshot
	if err := rlp.DecodeBytes(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("decode ledger snapshot: %w", err)
	}
	return &snap, true, nil
}

// Save replaces the persisted snapshot.
func (s *LedgerStore) Save(snap *ledger.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("storage: nil ledger snapshot")
	}
	encoded, err := rlp.EncodeToBytes(snap)
	if err != nil {
		return fmt.Errorf("encode ledger snapshot: %w", err)
	}
	return s.db.Put(ledgerSnapshotKey, encoded)
}
