package dbctx

import (
	"context"

	"github.com/yungbote/cartledger/internal/data/store"
)

// Context bundles a request context with the unit of work it runs in.
type Context struct {
	Ctx context.Context
	UoW store.UnitOfWork
}

type uowKey struct{}

// WithUnitOfWork marks ctx as running inside uow.
func WithUnitOfWork(ctx context.Context, uow store.UnitOfWork) context.Context {
	return context.WithValue(ctx, uowKey{}, uow)
}

// ActiveUnitOfWork returns the unit of work ctx runs in, if it is still active.
func ActiveUnitOfWork(ctx context.Context) (store.UnitOfWork, bool) {
	if ctx == nil {
		return nil, false
	}
	uow, ok := ctx.Value(uowKey{}).(store.UnitOfWork)
	if !ok || uow == nil || !uow.Active() {
		return nil, false
	}
	return uow, true
}
