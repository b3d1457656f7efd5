package aggregates

import (
	"context"

	"github.com/yungbote/cartledger/internal/data/store"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/platform/dbctx"
)

// Get loads the entity with id. It returns nil, nil when no row exists.
// Carts come back without their membership; use FetchCartWithItems for that.
func Get[T carts.Entity](ctx context.Context, r *Repository, id int64) (*T, error) {
	op := "Carts.Get." + carts.Kind[T]()
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) (*T, error) {
		var v T
		found, err := dbc.UoW.Get(&v, id)
		if err != nil || !found {
			return nil, err
		}
		return &v, nil
	})
}

// Delete removes the entity with id; a missing row is a no-op. Deleting a
// cart applies the repository's delete policy to its members in the same
// unit of work.
func Delete[T carts.Entity](ctx context.Context, r *Repository, id int64) error {
	op := "Carts.Delete." + carts.Kind[T]()
	return r.runner.Run(ctx, op, func(dbc dbctx.Context) error {
		var v T
		if _, ok := any(&v).(*carts.Cart); ok {
			return r.deleteCart(dbc.UoW, id)
		}
		found, err := dbc.UoW.Get(&v, id)
		if err != nil || !found {
			return err
		}
		return dbc.UoW.Remove(&v)
	})
}

// List returns every entity matching p, ordered by id.
func List[T carts.Entity](ctx context.Context, r *Repository, p store.Predicate) ([]*T, error) {
	op := "Carts.List." + carts.Kind[T]()
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) ([]*T, error) {
		var out []*T
		if err := dbc.UoW.Query(&out, p); err != nil {
			return nil, err
		}
		return out, nil
	})
}
