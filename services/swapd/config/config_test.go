package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rateswap/native/exchange"
)

const sampleConfig = `
listen: ":9000"
database: "/tmp/audit.sqlite"
auth:
  jwt_secret: "file-secret"
  clock_skew: "1m"
exchange:
  owner: "0x00000000000000000000000000000000000000a1"
  account: "0x00000000000000000000000000000000000000e1"
  fee_mille: 1
tokens:
  - address: "0x000000000000000000000000000000000000aaaa"
    symbol: "tka"
    decimals: 18
genesis:
  - account: "0x00000000000000000000000000000000000000e1"
    asset: "TKA"
    amount: "50000000000000000000"
  - account: "0x00000000000000000000000000000000000000e1"
    asset: "native"
    amount: "50000000000000000000"
rates:
  - from: "TKA"
    to: "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
    rate_from: "3"
    rate_to: "1"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swapd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress)
	}
	if cfg.ShutdownTimeout.Duration != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
	if cfg.Auth.ClockSkew.Duration != time.Minute {
		t.Fatalf("unexpected clock skew %s", cfg.Auth.ClockSkew)
	}
	if cfg.RateLimit.RequestsPerSecond != 5 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit defaults %+v", cfg.RateLimit)
	}
	charge, err := cfg.Charge()
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if charge.Minimum.Dec() != "1000000000000000" {
		t.Fatalf("unexpected default charge %s", charge.Minimum.Dec())
	}
	asset, err := cfg.ResolveAsset("tka")
	if err != nil || asset.IsNative() {
		t.Fatalf("resolve symbol: %v (%s)", err, asset)
	}
	native, err := cfg.ResolveAsset(cfg.Rates[0].To)
	if err != nil || native != exchange.Native {
		t.Fatalf("resolve sentinel: %v (%s)", err, native)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWAPD_JWT_SECRET", "env-secret")
	t.Setenv("SWAPD_ENV", "staging")
	t.Setenv("SWAPD_LISTEN", ":9100")
	cfg, err := Load(writeConfig(t, sampleConfig), WithEnvOverrides(), WithListenAddress(":9200"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" || cfg.Environment != "staging" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.ListenAddress != ":9200" {
		t.Fatalf("later options must win, got %q", cfg.ListenAddress)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SWAPD_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SWAPD_TEST_DOTENV", "")
	os.Unsetenv("SWAPD_TEST_DOTENV")
	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("SWAPD_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("expected dotenv value, got %q", got)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]struct {
		old, new string
		want     string
	}{
		"missing secret":  {old: `jwt_secret: "file-secret"`, new: `jwt_secret: ""`, want: "auth.jwt_secret"},
		"zero owner":      {old: `owner: "0x00000000000000000000000000000000000000a1"`, new: `owner: "0x0000000000000000000000000000000000000000"`, want: "exchange.owner"},
		"fee too high":    {old: "fee_mille: 1", new: "fee_mille: 100", want: "fee_mille"},
		"unknown asset":   {old: `asset: "TKA"`, new: `asset: "TKB"`, want: "genesis[0]"},
		"zero rate":       {old: `rate_from: "3"`, new: `rate_from: "0"`, want: exchange.ErrInvalidRate.Error()},
		"identical pair":  {old: `to: "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"`, new: `to: "TKA"`, want: exchange.ErrIdenticalAssets.Error()},
		"reserved symbol": {old: `symbol: "tka"`, new: `symbol: "native"`, want: "invalid symbol"},
		"unknown field":   {old: `listen: ":9000"`, new: `listne: ":9000"`, want: "decode config"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body := strings.Replace(sampleConfig, tc.old, tc.new, 1)
			_, err := Load(writeConfig(t, body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
