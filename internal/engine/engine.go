package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/roach88/timelock/internal/dispatch"
	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/metrics"
	"github.com/roach88/timelock/internal/roles"
	"github.com/roach88/timelock/internal/store"
)

// DefaultSelf is the principal the timelock acts as when none is configured.
const DefaultSelf ir.Principal = "timelock"

// Dispatcher runs one call on behalf of an executing operation.
//
// ctx carries the execute transaction (see store.TxFromContext). A handler
// that writes through it has its effects rolled back if a later call in the
// same execute fails. Handlers must not call back into the Timelock.
type Dispatcher interface {
	Invoke(ctx context.Context, call ir.Call) error
}

// Timelock is the lifecycle engine.
//
// Thread-safety model:
//   - State-changing entry points are serialized by an internal mutex and
//     each runs in one SQLite transaction.
//   - Queries may run concurrently with each other and with mutations;
//     they observe committed state only.
//
// INVARIANTS:
//   - A ledger entry moves only Unset -> Waiting -> Ready -> Done, or back
//     to Unset via cancel. Done is terminal.
//   - min_delay changes only through a self-call made by execute.
type Timelock struct {
	mu sync.Mutex

	store      *store.Store
	gate       *roles.Gate
	clock      Clock
	dispatcher Dispatcher
	ids        IDGenerator
	self       ir.Principal
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Timelock.
type Option func(*Timelock)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(t *Timelock) { t.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Timelock) { t.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Timelock) { t.metrics = m }
}

// WithDispatcher sets the host call dispatcher.
// Default: a dispatch.Registry with the built-in state host.
func WithDispatcher(d Dispatcher) Option {
	return func(t *Timelock) { t.dispatcher = d }
}

// WithSelf sets the principal the timelock acts as. Calls targeting it are
// handled as self-calls. Default: DefaultSelf.
func WithSelf(p ir.Principal) Option {
	return func(t *Timelock) { t.self = p }
}

// WithIDGenerator sets the correlation id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(t *Timelock) { t.ids = g }
}

// New creates a Timelock over s. The store is owned by the caller and must
// outlive the Timelock.
func New(s *store.Store, opts ...Option) *Timelock {
	t := &Timelock{
		store:  s,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		self:   DefaultSelf,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dispatcher == nil {
		reg := dispatch.NewRegistry()
		dispatch.RegisterStateHost(reg)
		t.dispatcher = reg
	}
	t.gate = roles.NewGate(t.logger)
	return t
}

// Self returns the principal the timelock acts as.
func (t *Timelock) Self() ir.Principal {
	return t.self
}

// InitParams are the one-time setup parameters.
type InitParams struct {
	MinDelay  uint64
	Proposers []ir.Principal
	Executors []ir.Principal
	// Admin optionally receives DEFAULT_ADMIN next to the timelock itself.
	Admin ir.Principal
}

// Initialize performs one-time setup: DEFAULT_ADMIN as the admin of every
// role, DEFAULT_ADMIN to the timelock and the optional admin, PROPOSER and CANCELLER to every proposer, EXECUTOR to
// every executor, and the initial min_delay.
//
// An executor equal to ir.OpenPrincipal opens execution to every caller.
func (t *Timelock) Initialize(ctx context.Context, p InitParams) error {
	if p.MinDelay > math.MaxInt64 {
		return t.reject("initialize", newError(CodeDelayOverflow, "min delay %d exceeds %d", p.MinDelay, int64(math.MaxInt64)))
	}
	if t.self == "" || t.self.IsOpen() {
		return fmt.Errorf("initialize: %q cannot act as the timelock", t.self)
	}
	for _, list := range [][]ir.Principal{p.Proposers, p.Executors} {
		for _, acct := range list {
			if acct == "" {
				return fmt.Errorf("initialize: empty principal")
			}
		}
	}
	for _, acct := range p.Proposers {
		if acct.IsOpen() {
			return fmt.Errorf("initialize: %q cannot be a proposer", acct)
		}
	}

	err := t.update(ctx, false, func(tx *store.Tx, stamp roles.Stamp) error {
		done, _, err := tx.Initialized(ctx)
		if err != nil {
			return err
		}
		if done {
			return newError(CodeAlreadyInitialized, "timelock already initialized")
		}

		for _, role := range []ir.Role{ir.RoleDefaultAdmin, ir.RoleProposer, ir.RoleCanceller, ir.RoleExecutor} {
			if err := t.gate.SetRoleAdmin(ctx, tx, stamp, role, ir.RoleDefaultAdmin); err != nil {
				return err
			}
		}

		type grant struct {
			role ir.Role
			acct ir.Principal
		}
		grants := []grant{{ir.RoleDefaultAdmin, t.self}}
		if p.Admin != "" {
			grants = append(grants, grant{ir.RoleDefaultAdmin, p.Admin})
		}
		for _, acct := range p.Proposers {
			grants = append(grants, grant{ir.RoleProposer, acct}, grant{ir.RoleCanceller, acct})
		}
		for _, acct := range p.Executors {
			grants = append(grants, grant{ir.RoleExecutor, acct})
		}
		for _, g := range grants {
			if err := t.gate.Grant(ctx, tx, stamp, t.self, g.role, g.acct); err != nil {
				return err
			}
		}

		if err := tx.SetMinDelay(ctx, p.MinDelay); err != nil {
			return err
		}
		if err := emitMinDelayChange(ctx, tx, stamp, ir.ZeroOperationID, store.NoCallIndex, 0, p.MinDelay); err != nil {
			return err
		}
		return tx.MarkInitialized(ctx, t.self)
	})
	if err != nil {
		return t.reject("initialize", err)
	}

	t.metrics.SetMinDelay(p.MinDelay)
	t.logger.Info("timelock initialized",
		"self", t.self,
		"min_delay", p.MinDelay,
		"proposers", len(p.Proposers),
		"executors", len(p.Executors))
	return nil
}

// update runs fn in a serialized read-write transaction with a fresh stamp.
// When requireInit is set, fn only runs on an initialized timelock.
func (t *Timelock) update(ctx context.Context, requireInit bool, fn func(tx *store.Tx, stamp roles.Stamp) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamp := roles.Stamp{Timestamp: t.clock.Now(), CorrelationID: t.ids.Generate()}
	return t.store.Update(ctx, func(tx *store.Tx) error {
		if requireInit {
			done, _, err := tx.Initialized(ctx)
			if err != nil {
				return err
			}
			if !done {
				return newError(CodeNotInitialized, "timelock not initialized")
			}
		}
		return fn(tx, stamp)
	})
}

// view runs fn in a read-only transaction.
func (t *Timelock) view(ctx context.Context, fn func(tx *store.Tx) error) error {
	return t.store.View(ctx, fn)
}

// reject records a rejection and passes err through.
func (t *Timelock) reject(op string, err error) error {
	if code := CodeOf(err); code != "" {
		t.metrics.Rejected(string(code))
		t.logger.Debug("request rejected", "op", op, "code", code, "error", err)
	}
	return err
}

func emitMinDelayChange(ctx context.Context, tx *store.Tx, stamp roles.Stamp, id ir.OperationID, index int, old, updated uint64) error {
	_, err := tx.AppendEvent(ctx, store.Event{
		Kind:          store.EventMinDelayChange,
		OperationID:   id,
		CallIndex:     index,
		Timestamp:     stamp.Timestamp,
		CorrelationID: stamp.CorrelationID,
		Payload: ir.IRObject{
			"old_duration": ir.IRInt(old),
			"new_duration": ir.IRInt(updated),
		},
	})
	return err
}
