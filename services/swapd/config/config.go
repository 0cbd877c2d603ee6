package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rateswap/native/exchange"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for swapd.
type Config struct {
	ListenAddress   string          `yaml:"listen"`
	Environment     string          `yaml:"environment"`
	DatabasePath    string          `yaml:"database"`
	StateDir        string          `yaml:"state_dir"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"`
	Log             LogConfig       `yaml:"log"`
	TLS             TLSConfig       `yaml:"tls"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Exchange        ExchangeConfig  `yaml:"exchange"`
	Tokens          []Token         `yaml:"tokens"`
	Genesis         []Allocation    `yaml:"genesis"`
	Rates           []Rate          `yaml:"rates"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TLSConfig enables HTTPS when both paths are set.
type TLSConfig struct {
	CertPath string `yaml:"cert"`
	KeyPath  string `yaml:"key"`
}

// Enabled reports whether TLS material is configured.
func (t TLSConfig) Enabled() bool {
	return strings.TrimSpace(t.CertPath) != "" && strings.TrimSpace(t.KeyPath) != ""
}

// AuthConfig configures JWT verification for caller identity.
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	Issuer    string   `yaml:"issuer"`
	Audience  []string `yaml:"audience"`
	ClockSkew Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds mutating requests per caller.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"rps"`
	Burst             int     `yaml:"burst"`
}

// ExchangeConfig describes the engine identity and parameters applied at
// first boot.
type ExchangeConfig struct {
	Owner         string `yaml:"owner"`
	Account       string `yaml:"account"`
	FeeMille      uint64 `yaml:"fee_mille"`
	ServiceCharge string `yaml:"service_charge"`
	RefundExcess  bool   `yaml:"refund_excess"`
}

// Token registers a fungible token with the ledger.
type Token struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// Allocation credits an account at first boot. Asset is "native", a token
// symbol or a token address; Amount is in smallest units.
type Allocation struct {
	Account string `yaml:"account"`
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
}

// Rate seeds a rate table entry at first boot, in smallest units.
type Rate struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	RateFrom string `yaml:"rate_from"`
	RateTo   string `yaml:"rate_to"`
}

// Option mutates the configuration after decoding and before validation.
type Option func(*Config)

// WithListenAddress overrides the listen address.
func WithListenAddress(addr string) Option {
	return func(cfg *Config) {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			cfg.ListenAddress = trimmed
		}
	}
}

// WithEnvOverrides applies SWAPD_* environment variables.
func WithEnvOverrides() Option {
	return func(cfg *Config) {
		if v := strings.TrimSpace(os.Getenv("SWAPD_ENV")); v != "" {
			cfg.Environment = v
		}
		if v := strings.TrimSpace(os.Getenv("SWAPD_LISTEN")); v != "" {
			cfg.ListenAddress = v
		}
		if v := strings.TrimSpace(os.Getenv("SWAPD_JWT_SECRET")); v != "" {
			cfg.Auth.JWTSecret = v
		}
		if v := strings.TrimSpace(os.Getenv("SWAPD_DATABASE")); v != "" {
			cfg.DatabasePath = v
		}
		if v := strings.TrimSpace(os.Getenv("SWAPD_LOG_LEVEL")); v != "" {
			cfg.Log.Level = v
		}
		if v := strings.TrimSpace(os.Getenv("SWAPD_RATE_LIMIT_RPS")); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				cfg.RateLimit.RequestsPerSecond = parsed
			}
		}
	}
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from the supplied path.
func Load(path string, opts ...Option) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7080"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "/var/data/swapd-audit.sqlite"
	}
	if cfg.ShutdownTimeout.Duration == 0 {
		cfg.ShutdownTimeout.Duration = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 30 * time.Second
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 5
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
	if strings.TrimSpace(cfg.Exchange.ServiceCharge) == "" {
		cfg.Exchange.ServiceCharge = exchange.DefaultServiceCharge().Minimum.Dec()
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret must be configured")
	}
	if _, err := cfg.OwnerAddress(); err != nil {
		return err
	}
	if _, err := cfg.AccountAddress(); err != nil {
		return err
	}
	if cfg.Exchange.FeeMille >= exchange.MaxFeeMille {
		return fmt.Errorf("exchange.fee_mille must be below %d", exchange.MaxFeeMille)
	}
	if _, err := cfg.Charge(); err != nil {
		return err
	}
	if cfg.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative")
	}
	if (strings.TrimSpace(cfg.TLS.CertPath) == "") != (strings.TrimSpace(cfg.TLS.KeyPath) == "") {
		return fmt.Errorf("tls.cert and tls.key must be configured together")
	}

	symbols := make(map[string]struct{}, len(cfg.Tokens))
	addresses := make(map[ethcommon.Address]struct{}, len(cfg.Tokens))
	for i, token := range cfg.Tokens {
		if !ethcommon.IsHexAddress(strings.TrimSpace(token.Address)) {
			return fmt.Errorf("tokens[%d]: invalid address %q", i, token.Address)
		}
		addr := ethcommon.HexToAddress(strings.TrimSpace(token.Address))
		if !exchange.Fungible(addr).Valid() {
			return fmt.Errorf("tokens[%d]: reserved address %s", i, addr.Hex())
		}
		symbol := normalizeSymbol(token.Symbol)
		if symbol == "" || symbol == "NATIVE" {
			return fmt.Errorf("tokens[%d]: invalid symbol %q", i, token.Symbol)
		}
		if _, dup := symbols[symbol]; dup {
			return fmt.Errorf("tokens[%d]: duplicate symbol %s", i, symbol)
		}
		if _, dup := addresses[addr]; dup {
			return fmt.Errorf("tokens[%d]: duplicate address %s", i, addr.Hex())
		}
		symbols[symbol] = struct{}{}
		addresses[addr] = struct{}{}
	}

	for i, alloc := range cfg.Genesis {
		if !ethcommon.IsHexAddress(strings.TrimSpace(alloc.Account)) {
			return fmt.Errorf("genesis[%d]: invalid account %q", i, alloc.Account)
		}
		if _, err := cfg.ResolveAsset(alloc.Asset); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if _, err := ParseAmount(alloc.Amount); err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}

	for i, rate := range cfg.Rates {
		from, err := cfg.ResolveAsset(rate.From)
		if err != nil {
			return fmt.Errorf("rates[%d]: from: %w", i, err)
		}
		to, err := cfg.ResolveAsset(rate.To)
		if err != nil {
			return fmt.Errorf("rates[%d]: to: %w", i, err)
		}
		if from == to {
			return fmt.Errorf("rates[%d]: %w", i, exchange.ErrIdenticalAssets)
		}
		for _, raw := range []string{rate.RateFrom, rate.RateTo} {
			v, err := ParseAmount(raw)
			if err != nil {
				return fmt.Errorf("rates[%d]: %w", i, err)
			}
			if v.IsZero() {
				return fmt.Errorf("rates[%d]: %w", i, exchange.ErrInvalidRate)
			}
		}
	}
	return nil
}

// OwnerAddress returns the configured engine administrator.
func (c Config) OwnerAddress() (ethcommon.Address, error) {
	return parseAccount("exchange.owner", c.Exchange.Owner)
}

// AccountAddress returns the account holding the engine reserves.
func (c Config) AccountAddress() (ethcommon.Address, error) {
	return parseAccount("exchange.account", c.Exchange.Account)
}

// Charge returns the configured default service charge.
func (c Config) Charge() (exchange.ServiceCharge, error) {
	minimum, err := ParseAmount(c.Exchange.ServiceCharge)
	if err != nil {
		return exchange.ServiceCharge{}, fmt.Errorf("exchange.service_charge: %w", err)
	}
	return exchange.ServiceCharge{Minimum: minimum, RefundExcess: c.Exchange.RefundExcess}, nil
}

// ResolveAsset accepts "native", a configured token symbol or any asset
// address.
func (c Config) ResolveAsset(ref string) (exchange.Asset, error) {
	trimmed := strings.TrimSpace(ref)
	symbol := normalizeSymbol(trimmed)
	for _, token := range c.Tokens {
		if normalizeSymbol(token.Symbol) == symbol && symbol != "" {
			return exchange.Fungible(ethcommon.HexToAddress(strings.TrimSpace(token.Address))), nil
		}
	}
	return exchange.ParseAsset(trimmed)
}

// ParseAmount decodes a non-negative decimal smallest-unit amount.
func ParseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return v, nil
}

func parseAccount(field, raw string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("%s must be a hex address", field)
	}
	addr := ethcommon.HexToAddress(trimmed)
	if addr == (ethcommon.Address{}) {
		return ethcommon.Address{}, fmt.Errorf("%s must not be the zero address", field)
	}
	return addr, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
