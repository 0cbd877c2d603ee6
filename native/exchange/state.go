package exchange

import "sort"

// State persists the administrator-writable parameters of the engine.
type State interface {
	ExchangeRateGet(pair Pair) (*RateEntry, bool, error)
	ExchangeRatePut(entry *RateEntry) error
	ExchangeRates() ([]*RateEntry, error)
	ExchangeFeeGet() (uint64, bool, error)
	ExchangeFeePut(feeMille uint64) error
	ExchangeServiceChargeGet() (ServiceCharge, bool, error)
	ExchangeServiceChargePut(charge ServiceCharge) error
}

// MemoryState keeps parameters in process memory. It is not safe for
// concurrent use.
type MemoryState struct {
	rates     map[Pair]*RateEntry
	fee       uint64
	feeSet    bool
	charge    ServiceCharge
	chargeSet bool
}

// NewMemoryState returns an empty parameter store.
func NewMemoryState() *MemoryState {
	return &MemoryState{rates: make(map[Pair]*RateEntry)}
}

func (m *MemoryState) ExchangeRateGet(pair Pair) (*RateEntry, bool, error) {
	entry, ok := m.rates[pair]
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}

func (m *MemoryState) ExchangeRatePut(entry *RateEntry) error {
	if entry == nil {
		return nil
	}
	m.rates[entry.Pair] = entry.Clone()
	return nil
}

func (m *MemoryState) ExchangeRates() ([]*RateEntry, error) {
	out := make([]*RateEntry, 0, len(m.rates))
	for _, entry := range m.rates {
		out = append(out, entry.Clone())
	}
	sortEntries(out)
	return out, nil
}

func (m *MemoryState) ExchangeFeeGet() (uint64, bool, error) {
	return m.fee, m.feeSet, nil
}

func (m *MemoryState) ExchangeFeePut(feeMille uint64) error {
	m.fee = feeMille
	m.feeSet = true
	return nil
}

func (m *MemoryState) ExchangeServiceChargeGet() (ServiceCharge, bool, error) {
	if !m.chargeSet {
		return ServiceCharge{}, false, nil
	}
	return m.charge.Clone(), true, nil
}

func (m *MemoryState) ExchangeServiceChargePut(charge ServiceCharge) error {
	m.charge = charge.Clone()
	m.chargeSet = true
	return nil
}

func sortEntries(entries []*RateEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Pair.less(entries[j].Pair)
	})
}

// SortEntries orders rate entries by (from, to) for stable listings.
func SortEntries(entries []*RateEntry) { sortEntries(entries) }
