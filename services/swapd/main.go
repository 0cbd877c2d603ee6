package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"rateswap/native/exchange"
	"rateswap/native/ledger"
	"rateswap/observability"
	"rateswap/observability/logging"
	telemetry "rateswap/observability/otel"
	"rateswap/services/swapd/config"
	"rateswap/services/swapd/runtime"
	"rateswap/services/swapd/server"
	"rateswap/services/swapd/storage"
	kvstore "rateswap/storage"
)

var version = "dev"

func main() {
	var (
		cfgPath string
		listen  string
		envFile string
	)
	flag.StringVar(&cfgPath, "config", "services/swapd/config.yaml", "path to swapd configuration file")
	flag.StringVar(&listen, "listen", "", "override the HTTP listen address")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
	flag.Parse()

	if err := config.LoadDotEnv(envFile); err != nil {
		log.Fatalf("swapd: load env file: %v", err)
	}
	opts := []config.Option{config.WithEnvOverrides()}
	if strings.TrimSpace(listen) != "" {
		opts = append(opts, config.WithListenAddress(listen))
	}
	cfg, err := config.Load(cfgPath, opts...)
	if err != nil {
		log.Fatalf("swapd: load config: %v", err)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    "swapd",
		Env:        cfg.Environment,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	otelCfg := telemetry.ConfigFromEnv("swapd", cfg.Environment)
	otelCfg.Version = version
	shutdownTelemetry, err := telemetry.Init(context.Background(), otelCfg)
	if err != nil {
		log.Fatalf("swapd: init telemetry: %v", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	if err := run(cfg, logger); err != nil {
		logger.Error("swapd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	dsn, err := storage.FileDSN(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("resolve storage DSN: %w", err)
	}
	audit, err := storage.Open(dsn)
	if err != nil {
		return fmt.Errorf("open audit storage: %w", err)
	}
	defer audit.Close()

	var db kvstore.Database
	if dir := strings.TrimSpace(cfg.StateDir); dir != "" {
		ldb, err := kvstore.NewLevelDB(dir)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		db = ldb
	} else {
		logger.Warn("state_dir not set, exchange state is kept in memory")
		db = kvstore.NewMemDB()
	}
	defer db.Close()

	ownerAddr, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}
	accountAddr, err := cfg.AccountAddress()
	if err != nil {
		return err
	}
	charge, err := cfg.Charge()
	if err != nil {
		return err
	}

	rt, err := runtime.New(runtime.Options{
		Owner:         ownerAddr,
		Account:       accountAddr,
		DefaultCharge: charge,
		DB:            db,
		Audit:         audit,
		Logger:        logger,
		Metrics:       observability.Exchange(),
	})
	if err != nil {
		return err
	}
	genesis, err := genesisFromConfig(cfg)
	if err != nil {
		return err
	}
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applied, err := rt.Bootstrap(rootCtx, genesis)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("exchange ready",
		slog.String("owner", ownerAddr.Hex()),
		slog.String("account", accountAddr.Hex()),
		slog.Bool("genesis_applied", applied))

	stdLogger := log.Default()
	auth, err := server.NewAuthenticator(server.AuthConfig{
		HMACSecret: cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, stdLogger)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}
	logger.Info("auth configured",
		slog.String("issuer", cfg.Auth.Issuer),
		logging.MaskField("jwt_secret", cfg.Auth.JWTSecret))
	httpMetrics := observability.HTTP()
	limiter := server.NewRateLimiter(server.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, httpMetrics)

	srv, err := server.New(server.Config{
		ListenAddress:   cfg.ListenAddress,
		TLS:             server.TLSConfig{CertFile: cfg.TLS.CertPath, KeyFile: cfg.TLS.KeyPath},
		ShutdownTimeout: cfg.ShutdownTimeout.Duration,
	}, rt, auth, limiter, httpMetrics, stdLogger)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func genesisFromConfig(cfg config.Config) (runtime.Genesis, error) {
	var genesis runtime.Genesis
	for _, token := range cfg.Tokens {
		genesis.Tokens = append(genesis.Tokens, ledger.Token{
			Address:  ethcommon.HexToAddress(strings.TrimSpace(token.Address)),
			Symbol:   token.Symbol,
			Decimals: token.Decimals,
		})
	}
	for i, alloc := range cfg.Genesis {
		asset, err := cfg.ResolveAsset(alloc.Asset)
		if err != nil {
			return runtime.Genesis{}, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		amount, err := config.ParseAmount(alloc.Amount)
		if err != nil {
			return runtime.Genesis{}, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		genesis.Allocations = append(genesis.Allocations, runtime.Allocation{
			Account: ethcommon.HexToAddress(strings.TrimSpace(alloc.Account)),
			Asset:   asset,
			Amount:  amount,
		})
	}
	for i, rate := range cfg.Rates {
		from, err := cfg.ResolveAsset(rate.From)
		if err != nil {
			return runtime.Genesis{}, fmt.Errorf("rates[%d].from: %w", i, err)
		}
		to, err := cfg.ResolveAsset(rate.To)
		if err != nil {
			return runtime.Genesis{}, fmt.Errorf("rates[%d].to: %w", i, err)
		}
		rateFrom, err := config.ParseAmount(rate.RateFrom)
		if err != nil {
			return runtime.Genesis{}, fmt.Errorf("rates[%d].rate_from: %w", i, err)
		}
		rateTo, err := config.ParseAmount(rate.RateTo)
		if err != nil {
			return runtime.Genesis{}, fmt.Errorf("rates[%d].rate_to: %w", i, err)
		}
		genesis.Rates = append(genesis.Rates, exchange.RateEntry{
			Pair:     exchange.Pair{From: from, To: to},
			RateFrom: rateFrom,
			RateTo:   rateTo,
		})
	}
	genesis.FeeMille = cfg.Exchange.FeeMille
	return genesis, nil
}
