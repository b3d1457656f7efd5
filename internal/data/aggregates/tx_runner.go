package aggregates

import (
	"context"
	"fmt"

	"github.com/yungbote/cartledger/internal/data/store"
	domainagg "github.com/yungbote/cartledger/internal/domain/aggregates"
	"github.com/yungbote/cartledger/internal/platform/dbctx"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

// TxRunner provides a shared unit-of-work boundary primitive for aggregate
// operations. Implementations return the raw failure; classification happens
// in executeWrite.
type TxRunner interface {
	InTx(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error
}

type storeTxRunner struct {
	store store.Store
	log   *logger.Logger
	hooks Hooks
}

// NewStoreTxRunner returns a runner that opens one unit of work per call.
// fn is committed when it returns nil and rolled back when it fails, when the
// commit fails or when it panics; the unit of work is closed on every path.
func NewStoreTxRunner(s store.Store, log *logger.Logger, hooks Hooks) TxRunner {
	if log == nil {
		log = logger.Nop()
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &storeTxRunner{store: s, log: log.With("component", "TxRunner"), hooks: hooks}
}

func (r *storeTxRunner) InTx(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.store == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil store", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if outer, ok := dbctx.ActiveUnitOfWork(ctx); ok {
		return domainagg.ConstraintViolation(op, fmt.Sprintf("unit of work %s is already active; nested units of work are not supported", outer.ID()))
	}

	uow, err := r.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("open unit of work: %w", err)
	}
	log := r.log.With("op", op, "uow", uow.ID())
	defer r.close(op, log, uow)
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic inside unit of work, rolling back", "panic", p)
			r.rollback(op, log, uow)
			panic(p)
		}
	}()

	if err := fn(dbctx.Context{Ctx: dbctx.WithUnitOfWork(ctx, uow), UoW: uow}); err != nil {
		r.rollback(op, log, uow)
		return err
	}
	if err := uow.Commit(); err != nil {
		r.rollback(op, log, uow)
		return err
	}
	return nil
}

// rollback is a no-op once the unit of work is no longer active. A failing
// rollback is logged; the caller's error is what propagates.
func (r *storeTxRunner) rollback(op string, log *logger.Logger, uow store.UnitOfWork) {
	if !uow.Active() {
		return
	}
	r.hooks.IncRollback(op)
	if err := uow.Rollback(); err != nil {
		r.hooks.IncTeardownFailure(op)
		log.Warn("rollback failed", "error", err)
	}
}

func (r *storeTxRunner) close(op string, log *logger.Logger, uow store.UnitOfWork) {
	if err := uow.Close(); err != nil {
		r.hooks.IncTeardownFailure(op)
		log.Warn("closing unit of work failed (ignored)", "error", err)
	}
}

// Runner is the entry point aggregates use to run an operation inside a unit
// of work.
type Runner struct {
	deps BaseDeps
}

func NewRunner(deps BaseDeps) *Runner {
	return &Runner{deps: deps.withDefaults()}
}

// Run executes fn in a fresh unit of work. Every failure comes back as a
// transaction error whose cause carries the classified store or domain error.
func (r *Runner) Run(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error {
	return executeWrite(ctx, r.deps, op, fn)
}

// RunWithResult is Run for actions producing a value. The zero value is
// returned on failure.
func RunWithResult[T any](ctx context.Context, r *Runner, op string, fn func(dbc dbctx.Context) (T, error)) (T, error) {
	var out T
	err := r.Run(ctx, op, func(dbc dbctx.Context) error {
		v, err := fn(dbc)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
