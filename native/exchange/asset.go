package exchange

import (
	"bytes"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// NativeSentinel is the reserved address used on the wire to denote the
// native value asset. It never reaches the engine internals; ParseAsset maps
// it to Native.
var NativeSentinel = ethcommon.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// AssetKind discriminates the Asset variants.
type AssetKind uint8

const (
	// KindNative identifies the chain's base value unit.
	KindNative AssetKind = iota + 1
	// KindFungible identifies a token tracked by an external token ledger.
	KindFungible
)

func (k AssetKind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindFungible:
		return "fungible"
	default:
		return "unknown"
	}
}

// Asset identifies either the native value asset or a fungible token. The
// zero value is invalid. Asset is comparable and safe to use as a map key.
type Asset struct {
	kind  AssetKind
	token ethcommon.Address
}

// Native is the singleton native value asset.
var Native = Asset{kind: KindNative}

// Fungible returns the asset for the token at the supplied address.
func Fungible(token ethcommon.Address) Asset {
	return Asset{kind: KindFungible, token: token}
}

// Kind reports the variant of the asset.
func (a Asset) Kind() AssetKind { return a.kind }

// IsNative reports whether the asset is the native value asset.
func (a Asset) IsNative() bool { return a.kind == KindNative }

// Token returns the token address and true for fungible assets.
func (a Asset) Token() (ethcommon.Address, bool) {
	if a.kind != KindFungible {
		return ethcommon.Address{}, false
	}
	return a.token, true
}

// Valid reports whether the asset is one of the known variants.
func (a Asset) Valid() bool {
	switch a.kind {
	case KindNative:
		return a.token == (ethcommon.Address{})
	case KindFungible:
		return a.token != (ethcommon.Address{}) && a.token != NativeSentinel
	default:
		return false
	}
}

// String renders the asset in its wire representation.
func (a Asset) String() string {
	switch a.kind {
	case KindNative:
		return "native"
	case KindFungible:
		return a.token.Hex()
	default:
		return "invalid"
	}
}

// ParseAsset decodes the wire representation of an asset. "native" and the
// reserved sentinel address both map to Native; any other hex address is a
// fungible token.
func ParseAsset(raw string) (Asset, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Asset{}, fmt.Errorf("exchange: asset required")
	}
	if strings.EqualFold(trimmed, "native") {
		return Native, nil
	}
	if !ethcommon.IsHexAddress(trimmed) {
		return Asset{}, fmt.Errorf("exchange: invalid asset %q", raw)
	}
	addr := ethcommon.HexToAddress(trimmed)
	if addr == NativeSentinel {
		return Native, nil
	}
	if addr == (ethcommon.Address{}) {
		return Asset{}, fmt.Errorf("exchange: zero address is not an asset")
	}
	return Fungible(addr), nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Asset) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("exchange: cannot marshal invalid asset")
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Asset) UnmarshalText(text []byte) error {
	parsed, err := ParseAsset(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Pair is the directional key into the rate table.
type Pair struct {
	From Asset
	To   Asset
}

func (p Pair) String() string {
	return p.From.String() + "->" + p.To.String()
}

func (p Pair) less(other Pair) bool {
	if c := compareAssets(p.From, other.From); c != 0 {
		return c < 0
	}
	return compareAssets(p.To, other.To) < 0
}

func compareAssets(a, b Asset) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.token[:], b.token[:])
}
