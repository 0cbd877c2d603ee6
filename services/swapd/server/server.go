package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rateswap/native/exchange"
	"rateswap/native/ledger"
	"rateswap/observability"
	"rateswap/services/swapd/runtime"
	auditstore "rateswap/services/swapd/storage"
)

// Backend is the exchange runtime surface served over HTTP.
type Backend interface {
	Owner() ethcommon.Address
	Account() ethcommon.Address
	ResolveAsset(ref string) (exchange.Asset, error)
	SetRate(ctx context.Context, caller ethcommon.Address, from, to exchange.Asset, rateFrom, rateTo *uint256.Int) (*exchange.RateEntry, error)
	GetRate(ctx context.Context, from, to exchange.Asset) (*exchange.RateEntry, bool, error)
	Rates(ctx context.Context) ([]*exchange.RateEntry, error)
	SetFee(ctx context.Context, caller ethcommon.Address, feeMille uint64) error
	GetFee(ctx context.Context) (uint64, error)
	SetServiceCharge(ctx context.Context, caller ethcommon.Address, charge exchange.ServiceCharge) error
	GetServiceCharge(ctx context.Context) (exchange.ServiceCharge, error)
	Quote(ctx context.Context, from, to exchange.Asset, amount *uint256.Int) (*exchange.Quote, error)
	Swap(ctx context.Context, req exchange.SwapRequest) (*runtime.SwapOutcome, error)
	Balance(ctx context.Context, asset exchange.Asset, account ethcommon.Address) (*uint256.Int, error)
	Decimals(ctx context.Context, asset exchange.Asset) (uint8, error)
	Transfer(ctx context.Context, caller ethcommon.Address, asset exchange.Asset, recipient ethcommon.Address, amount *uint256.Int) error
	Approve(ctx context.Context, caller ethcommon.Address, asset exchange.Asset, spender ethcommon.Address, amount *uint256.Int) error
	Allowance(ctx context.Context, asset exchange.Asset, owner, spender ethcommon.Address) (*uint256.Int, error)
	Tokens(ctx context.Context) []ledger.Token
	History(ctx context.Context, account string, limit int) ([]auditstore.Receipt, error)
	Receipt(ctx context.Context, id string) (auditstore.Receipt, error)
}

// TLSConfig enables HTTPS when both files are set.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Config captures the HTTP server settings.
type Config struct {
	ListenAddress   string
	TLS             TLSConfig
	ShutdownTimeout time.Duration
}

// Server exposes the exchange runtime over HTTP.
type Server struct {
	cfg     Config
	backend Backend
	auth    *Authenticator
	limiter *RateLimiter
	metrics *observability.HTTPMetrics
	logger  *log.Logger
	handler http.Handler
}

// New constructs a new HTTP server.
func New(cfg Config, backend Backend, auth *Authenticator, limiter *RateLimiter, metrics *observability.HTTPMetrics, logger *log.Logger) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	srv := &Server{cfg: cfg, backend: backend, auth: auth, limiter: limiter, metrics: metrics, logger: logger}
	srv.handler = srv.routes()
	return srv, nil
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tokens", s.handleTokens)
		r.Get("/rates", s.handleListRates)
		r.Get("/rates/{from}/{to}", s.handleGetRate)
		r.Get("/fee", s.handleGetFee)
		r.Get("/service-charge", s.handleGetServiceCharge)
		r.Post("/quote", s.handleQuote)
		r.Get("/swaps", s.handleHistory)
		r.Get("/swaps/{id}", s.handleReceipt)
		r.Get("/ledger/balance", s.handleBalance)
		r.Get("/ledger/allowance", s.handleAllowance)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Use(s.limiter.Middleware)
			r.Put("/rates/{from}/{to}", s.handleSetRate)
			r.Put("/fee", s.handleSetFee)
			r.Put("/service-charge", s.handleSetServiceCharge)
			r.Post("/swap", s.handleSwap)
			r.Post("/ledger/transfer", s.handleTransfer)
			r.Post("/ledger/approve", s.handleApprove)
		})
	})
	return otelhttp.NewHandler(r, "swapd")
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.Observe(route, r.Method, status, time.Since(start))
	})
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{Addr: s.cfg.ListenAddress, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("swapd: http server listening on %s", s.cfg.ListenAddress)
	var err error
	if strings.TrimSpace(s.cfg.TLS.CertFile) == "" {
		err = srv.ListenAndServe()
	} else {
		err = srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"owner":   s.backend.Owner().Hex(),
		"account": s.backend.Account().Hex(),
	})
}
