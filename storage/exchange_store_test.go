package storage

import (
	"path/filepath"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"rateswap/native/exchange"
	"rateswap/native/ledger"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	level, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(level.Close)
	return map[string]Database{"mem": NewMemDB(), "leveldb": level}
}

func TestExchangeStoreRoundTrip(t *testing.T) {
	tokenA := exchange.Fungible(ethcommon.HexToAddress("0x0a"))
	tokenB := exchange.Fungible(ethcommon.HexToAddress("0x0b"))
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewExchangeStore(db)

			_, ok, err := store.ExchangeRateGet(exchange.Pair{From: tokenA, To: tokenB})
			require.NoError(t, err)
			require.False(t, ok)
			_, ok, err = store.ExchangeFeeGet()
			require.NoError(t, err)
			require.False(t, ok)
			_, ok, err = store.ExchangeServiceChargeGet()
			require.NoError(t, err)
			require.False(t, ok)

			big := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
			require.NoError(t, store.ExchangeRatePut(&exchange.RateEntry{Pair: exchange.Pair{From: tokenB, To: exchange.Native}, RateFrom: uint256.NewInt(3), RateTo: big}))
			require.NoError(t, store.ExchangeRatePut(&exchange.RateEntry{Pair: exchange.Pair{From: exchange.Native, To: tokenA}, RateFrom: uint256.NewInt(1), RateTo: uint256.NewInt(2)}))

			entry, ok, err := store.ExchangeRateGet(exchange.Pair{From: tokenB, To: exchange.Native})
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, uint64(3), entry.RateFrom.Uint64())
			require.True(t, entry.RateTo.Eq(big))

			rates, err := store.ExchangeRates()
			require.NoError(t, err)
			require.Len(t, rates, 2)
			require.Equal(t, exchange.Native, rates[0].Pair.From)
			require.Equal(t, tokenB, rates[1].Pair.From)

			require.NoError(t, store.ExchangeFeePut(42))
			fee, ok, err := store.ExchangeFeeGet()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, uint64(42), fee)

			require.NoError(t, store.ExchangeServiceChargePut(exchange.ServiceCharge{Minimum: uint256.NewInt(99), RefundExcess: true}))
			charge, ok, err := store.ExchangeServiceChargeGet()
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, uint64(99), charge.Minimum.Uint64())
			require.True(t, charge.RefundExcess)
		})
	}
}

func TestEngineOverExchangeStore(t *testing.T) {
	owner := ethcommon.HexToAddress("0x01")
	db := NewMemDB()
	engine := exchange.NewEngine(owner)
	engine.SetState(NewExchangeStore(db))
	tokenA := exchange.Fungible(ethcommon.HexToAddress("0x0a"))
	_, err := engine.SetRate(owner, exchange.Native, tokenA, uint256.NewInt(1), uint256.NewInt(5))
	require.NoError(t, err)
	require.NoError(t, engine.SetFee(owner, 3))

	reopened := exchange.NewEngine(owner)
	reopened.SetState(NewExchangeStore(db))
	entry, ok, err := reopened.GetRate(exchange.Native, tokenA)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), entry.RateTo.Uint64())
	fee, err := reopened.GetFee()
	require.NoError(t, err)
	require.Equal(t, uint64(3), fee)
}

func TestLedgerStoreRoundTrip(t *testing.T) {
	holder := ethcommon.HexToAddress("0xa1")
	tokenAddr := ethcommon.HexToAddress("0x0a")
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewLedgerStore(db)
			_, ok, err := store.Load()
			require.NoError(t, err)
			require.False(t, ok)

			l := ledger.New()
			require.NoError(t, l.RegisterToken(ledger.Token{Address: tokenAddr, Symbol: "TKA", Decimals: 6}))
			require.NoError(t, l.MintToken(tokenAddr, holder, uint256.NewInt(1234)))
			require.NoError(t, l.CreditNative(holder, uint256.NewInt(77)))
			require.NoError(t, store.Save(l.Export()))

			snap, ok, err := store.Load()
			require.NoError(t, err)
			require.True(t, ok)
			restored := ledger.New()
			require.NoError(t, restored.Import(snap))
			bal, err := restored.TokenBalanceOf(tokenAddr, holder)
			require.NoError(t, err)
			require.Equal(t, uint64(1234), bal.Uint64())
			native, err := restored.NativeBalance(holder)
			require.NoError(t, err)
			require.Equal(t, uint64(77), native.Uint64())
		})
	}
}

func TestMemDBIterate(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("p/b"), []byte("2")))
	require.NoError(t, db.Put([]byte("p/a"), []byte("1")))
	require.NoError(t, db.Put([]byte("q/a"), []byte("3")))
	var seen []string
	require.NoError(t, db.Iterate([]byte("p/"), func(key, value []byte) bool {
		seen = append(seen, string(key)+"="+string(value))
		return true
	}))
	require.Equal(t, []string{"p/a=1", "p/b=2"}, seen)

	require.NoError(t, db.Delete([]byte("p/a")))
	_, err := db.Get([]byte("p/a"))
	require.ErrorIs(t, err, ErrNotFound)
}
