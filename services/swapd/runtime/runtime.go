package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rateswap/core/events"
	"rateswap/core/types"
	"rateswap/native/exchange"
	"rateswap/native/ledger"
	"rateswap/observability"
	auditstore "rateswap/services/swapd/storage"
	kvstore "rateswap/storage"
)

// Auditor persists committed events and receipts.
type Auditor interface {
	RecordCommit(ctx context.Context, events []*types.Event, receipt *auditstore.Receipt, when time.Time) (string, error)
	ListSwaps(ctx context.Context, account string, limit int) ([]auditstore.Receipt, error)
	GetSwap(ctx context.Context, id string) (auditstore.Receipt, error)
}

// Options configures a Runtime.
type Options struct {
	Owner         ethcommon.Address
	Account       ethcommon.Address
	DefaultCharge exchange.ServiceCharge
	// DB holds engine parameters and ledger snapshots.
	DB      kvstore.Database
	Audit   Auditor
	Logger  *slog.Logger
	Metrics *observability.ExchangeMetrics
	Now     func() time.Time
}

// Runtime owns the exchange engine and its ledger. Every call is serialised
// by one mutex; mutating calls either commit and persist as a whole or leave
// no trace.
type Runtime struct {
	mu       sync.Mutex
	engine   *exchange.Engine
	ledger   *ledger.Ledger
	staged   *kvstore.Staged
	ledgers  *kvstore.LedgerStore
	buffer   *events.Buffer
	audit    Auditor
	logger   *slog.Logger
	metrics  *observability.ExchangeMetrics
	tracer   trace.Tracer
	now      func() time.Time
	restored bool
}

// New opens the runtime over the supplied stores, restoring any persisted
// ledger snapshot.
func New(opts Options) (*Runtime, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("runtime: database required")
	}
	if opts.Account == (ethcommon.Address{}) {
		return nil, fmt.Errorf("runtime: engine account required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	book := ledger.New()
	staged := kvstore.NewStaged(opts.DB)
	ledgers := kvstore.NewLedgerStore(staged)
	snap, ok, err := ledgers.Load()
	if err != nil {
		return nil, fmt.Errorf("runtime: load ledger: %w", err)
	}
	if ok {
		if err := book.Import(snap); err != nil {
			return nil, fmt.Errorf("runtime: restore ledger: %w", err)
		}
	}

	buffer := &events.Buffer{}
	engine := exchange.NewEngine(opts.Owner)
	engine.SetState(kvstore.NewExchangeStore(staged))
	engine.SetReserves(exchange.NewReserves(book, opts.Account))
	engine.SetEmitter(buffer)
	if opts.DefaultCharge.Minimum != nil {
		engine.SetDefaultServiceCharge(opts.DefaultCharge)
	}

	return &Runtime{
		engine:   engine,
		ledger:   book,
		staged:   staged,
		ledgers:  ledgers,
		buffer:   buffer,
		audit:    opts.Audit,
		logger:   logger.With(slog.String("component", "runtime")),
		metrics:  opts.Metrics,
		tracer:   otel.Tracer("rateswap/services/swapd/runtime"),
		now:      now,
		restored: ok,
	}, nil
}

// Owner returns the engine administrator.
func (r *Runtime) Owner() ethcommon.Address { return r.engine.Owner() }

// Account returns the account holding the engine reserves.
func (r *Runtime) Account() ethcommon.Address { return r.engine.Reserves().Account() }

// Restored reports whether state was loaded from a previous run.
func (r *Runtime) Restored() bool { return r.restored }

// commit runs fn under the lock. Engine parameter writes and the ledger
// snapshot are staged and flushed to the database in one batch. On success
// the journal is finalised and buffered events flushed to the audit log; on
// failure the staged writes are discarded, the ledger reverted and events
// dropped.
func (r *Runtime) commit(ctx context.Context, op string, fn func() (*auditstore.Receipt, error)) (string, error) {
	ctx, span := r.tracer.Start(ctx, "swapd."+op)
	defer span.End()
	start := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer.Reset()
	r.staged.Discard()
	snap := r.ledger.Snapshot()
	receipt, err := fn()
	if err == nil {
		err = r.persist()
	}
	if err != nil {
		r.staged.Discard()
		r.ledger.RevertToSnapshot(snap)
		r.buffer.Reset()
		r.finish(span, op, start, err)
		return "", err
	}
	r.ledger.Finalise()

	flushed := r.buffer.Drain()
	payloads := make([]*types.Event, 0, len(flushed))
	for _, evt := range flushed {
		payload := events.Attributes(evt)
		if payload == nil {
			continue
		}
		payloads = append(payloads, payload)
		r.logger.InfoContext(ctx, "event committed", slog.String("operation", op), slog.String("type", payload.Type), slog.Any("attributes", payload.Attributes))
	}
	id := ""
	if r.audit != nil && (len(payloads) > 0 || receipt != nil) {
		recorded, auditErr := r.audit.RecordCommit(ctx, payloads, receipt, r.now())
		if auditErr != nil {
			// The ledger already committed; losing the audit row must not undo it.
			r.logger.ErrorContext(ctx, "audit write failed", slog.String("operation", op), slog.Any("error", auditErr))
			span.RecordError(auditErr)
		}
		id = recorded
	}
	r.finish(span, op, start, nil)
	return id, nil
}

func (r *Runtime) persist() error {
	if err := r.ledgers.Save(r.ledger.Export()); err != nil {
		return fmt.Errorf("runtime: persist ledger: %w", err)
	}
	if err := r.staged.Commit(); err != nil {
		return fmt.Errorf("runtime: persist state: %w", err)
	}
	return nil
}

// read runs fn under the lock for operations that never mutate.
func (r *Runtime) read(ctx context.Context, op string, fn func() error) error {
	_, span := r.tracer.Start(ctx, "swapd."+op)
	defer span.End()
	start := r.now()

	r.mu.Lock()
	err := fn()
	r.mu.Unlock()

	r.finish(span, op, start, err)
	return err
}

func (r *Runtime) finish(span trace.Span, op string, start time.Time, err error) {
	code := ""
	if err != nil {
		code = errorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		span.SetAttributes(attribute.String("rateswap.error_code", code))
	}
	r.metrics.Observe(op, r.now().Sub(start), code)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrZeroAddress):
		return "zero_address"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, auditstore.ErrReceiptNotFound):
		return "receipt_not_found"
	}
	var allowanceErr *ledger.AllowanceError
	if errors.As(err, &allowanceErr) {
		return "insufficient_allowance"
	}
	return exchange.ErrorCode(err)
}

// ErrorCode exposes the stable identifier used in metrics and API errors.
func ErrorCode(err error) string { return errorCode(err) }

func (r *Runtime) publishReserve(asset exchange.Asset) {
	if r.metrics == nil {
		return
	}
	balance, err := r.engine.Reserves().Balance(asset)
	if err != nil {
		return
	}
	r.metrics.SetReserve(asset.String(), balance.ToBig())
}
