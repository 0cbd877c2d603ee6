package storage

import (
	"errors"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"rateswap/native/exchange"
)

var (
	rateKeyPrefix    = []byte("exchange/rate/")
	feeKey           = []byte("exchange/fee")
	serviceChargeKey = []byte("exchange/service-charge")
)

type storedRate struct {
	FromKind  uint8
	FromToken ethcommon.Address
	ToKind    uint8
	ToToken   ethcommon.Address
	RateFrom  *big.Int
	RateTo    *big.Int
}

type storedFee struct {
	FeeMille uint64
}

type storedCharge struct {
	Minimum      *big.Int
	RefundExcess bool
}

// ExchangeStore persists engine parameters as RLP records in a Database.
type ExchangeStore struct {
	db Database
}

var _ exchange.State = (*ExchangeStore)(nil)

// NewExchangeStore binds the store to db.
func NewExchangeStore(db Database) *ExchangeStore {
	return &ExchangeStore{db: db}
}

func rateKey(pair exchange.Pair) []byte {
	key := append([]byte(nil), rateKeyPrefix...)
	key = appendAsset(key, pair.From)
	return appendAsset(key, pair.To)
}

func appendAsset(dst []byte, asset exchange.Asset) []byte {
	token, _ := asset.Token()
	dst = append(dst, byte(asset.Kind()))
	return append(dst, token.Bytes()...)
}

func decodeAsset(kind uint8, token ethcommon.Address) (exchange.Asset, error) {
	switch exchange.AssetKind(kind) {
	case exchange.KindNative:
		return exchange.Native, nil
	case exchange.KindFungible:
		asset := exchange.Fungible(token)
		if !asset.Valid() {
			return exchange.Asset{}, exchange.ErrInvalidAsset
		}
		return asset, nil
	default:
		return exchange.Asset{}, fmt.Errorf("%w: kind %d", exchange.ErrInvalidAsset, kind)
	}
}

func (s *ExchangeStore) ExchangeRateGet(pair exchange.Pair) (*exchange.RateEntry, bool, error) {
	raw, err := s.db.Get(rateKey(pair))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := decodeRate(raw)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *ExchangeStore) ExchangeRatePut(entry *exchange.RateEntry) error {
	if entry == nil {
		return nil
	}
	fromToken, _ := entry.Pair.From.Token()
	toToken, _ := entry.Pair.To.Token()
	record := storedRate{
		FromKind:  uint8(entry.Pair.From.Kind()),
		FromToken: fromToken,
		ToKind:    uint8(entry.Pair.To.Kind()),
		ToToken:   toToken,
		RateFrom:  amountToBig(entry.RateFrom),
		RateTo:    amountToBig(entry.RateTo),
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return s.db.Put(rateKey(entry.Pair), encoded)
}

func (s *ExchangeStore) ExchangeRates() ([]*exchange.RateEntry, error) {
	var (
		out     []*exchange.RateEntry
		iterErr error
	)
	err := s.db.Iterate(rateKeyPrefix, func(_, value []byte) bool {
		entry, err := decodeRate(value)
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, entry)
		return true
	})
	if err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, iterErr
	}
	exchange.SortEntries(out)
	return out, nil
}

func (s *ExchangeStore) ExchangeFeeGet() (uint64, bool, error) {
	raw, err := s.db.Get(feeKey)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var record storedFee
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return 0, false, fmt.Errorf("decode fee: %w", err)
	}
	return record.FeeMille, true, nil
}

func (s *ExchangeStore) ExchangeFeePut(feeMille uint64) error {
	encoded, err := rlp.EncodeToBytes(&storedFee{FeeMille: feeMille})
	if err != nil {
		return err
	}
	return s.db.Put(feeKey, encoded)
}

func (s *ExchangeStore) ExchangeServiceChargeGet() (exchange.ServiceCharge, bool, error) {
	raw, err := s.db.Get(serviceChargeKey)
	if errors.Is(err, ErrNotFound) {
		return exchange.ServiceCharge{}, false, nil
	}
	if err != nil {
		return exchange.ServiceCharge{}, false, err
	}
	var record storedCharge
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return exchange.ServiceCharge{}, false, fmt.Errorf("decode service charge: %w", err)
	}
	minimum, err := bigToAmount(record.Minimum)
	if err != nil {
		return exchange.ServiceCharge{}, false, err
	}
	return exchange.ServiceCharge{Minimum: minimum, RefundExcess: record.RefundExcess}, true, nil
}

func (s *ExchangeStore) ExchangeServiceChargePut(charge exchange.ServiceCharge) error {
	encoded, err := rlp.EncodeToBytes(&storedCharge{Minimum: amountToBig(charge.Minimum), RefundExcess: charge.RefundExcess})
	if err != nil {
		return err
	}
	return s.db.Put(serviceChargeKey, encoded)
}

func decodeRate(raw []byte) (*exchange.RateEntry, error) {
	var record storedRate
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return nil, fmt.Errorf("decode rate: %w", err)
	}
	from, err := decodeAsset(record.FromKind, record.FromToken)
	if err != nil {
		return nil, err
	}
	to, err := decodeAsset(record.ToKind, record.ToToken)
	if err != nil {
		return nil, err
	}
	rateFrom, err := bigToAmount(record.RateFrom)
	if err != nil {
		return nil, err
	}
	rateTo, err := bigToAmount(record.RateTo)
	if err != nil {
		return nil, err
	}
	return &exchange.RateEntry{Pair: exchange.Pair{From: from, To: to}, RateFrom: rateFrom, RateTo: rateTo}, nil
}

func amountToBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func bigToAmount(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, exchange.ErrOverflow
	}
	return out, nil
}
