package aggregates

import (
	"context"
	"errors"

	"github.com/yungbote/cartledger/internal/data/store"
	domainagg "github.com/yungbote/cartledger/internal/domain/aggregates"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/platform/dbctx"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

type CartAggregateDeps struct {
	Base   BaseDeps
	Policy carts.DeletePolicy
}

// Repository implements carts.CartAggregate. Every method owns exactly one
// unit of work, except Purge which opens one per delete.
type Repository struct {
	runner *Runner
	log    *logger.Logger
	hooks  Hooks
	policy carts.DeletePolicy
	rel    carts.RelationshipManager
}

var _ carts.CartAggregate = (*Repository)(nil)

func NewCartAggregate(deps CartAggregateDeps) *Repository {
	deps.Base = deps.Base.withDefaults()
	log := deps.Base.Log.With("repo", "CartAggregate")
	policy := deps.Policy
	if policy == "" {
		policy = carts.DeleteOrphan
	}
	if !policy.Valid() {
		log.Warn("unknown delete policy, falling back to orphan", "policy", string(policy))
		policy = carts.DeleteOrphan
	}
	return &Repository{
		runner: NewRunner(deps.Base),
		log:    log,
		hooks:  deps.Base.Hooks,
		policy: policy,
	}
}

func (r *Repository) Contract() domainagg.Contract {
	return carts.CartAggregateContract
}

func (r *Repository) Policy() carts.DeletePolicy { return r.policy }

func (r *Repository) CreateCart(ctx context.Context, label string) (*carts.Cart, error) {
	const op = "Carts.CreateCart"
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) (*carts.Cart, error) {
		c := carts.NewCart(label)
		if err := dbc.UoW.Save(c); err != nil {
			return nil, err
		}
		c.SetItems(nil)
		r.log.Debug("cart created", "cart_id", c.ID)
		return c, nil
	})
}

func (r *Repository) CreateItem(ctx context.Context, name string) (*carts.Item, error) {
	const op = "Carts.CreateItem"
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) (*carts.Item, error) {
		it := carts.NewItem(name)
		if err := dbc.UoW.Save(it); err != nil {
			return nil, err
		}
		r.log.Debug("item created", "item_id", it.ID)
		return it, nil
	})
}

func (r *Repository) RenameItem(ctx context.Context, id int64, name string) (*carts.Item, error) {
	const op = "Carts.RenameItem"
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) (*carts.Item, error) {
		it, err := requireItem(op, dbc.UoW, id)
		if err != nil {
			return nil, err
		}
		it.Name = name
		if err := dbc.UoW.Save(it); err != nil {
			return nil, err
		}
		return it, nil
	})
}

func (r *Repository) UpdateCart(ctx context.Context, id int64, label *string, items *carts.ItemSet) (*carts.Cart, error) {
	const op = "Carts.UpdateCart"
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) (*carts.Cart, error) {
		c, err := requireCart(op, dbc.UoW, id)
		if err != nil {
			return nil, err
		}
		c.SetLabel(label)
		ch, err := r.rel.Reconcile(c, items, resolver(dbc.UoW))
		if err != nil {
			return nil, err
		}
		if err := dbc.UoW.Save(c); err != nil {
			return nil, err
		}
		for _, it := range ch.Touched() {
			if err := dbc.UoW.Save(it); err != nil {
				return nil, err
			}
		}
		for itemID, prev := range ch.PreviousOwner {
			r.log.Debug("item moved between carts", "item_id", itemID, "from_cart", prev, "to_cart", c.ID)
		}
		r.log.Debug("cart updated", "cart_id", c.ID, "detached", len(ch.Detached), "attached", len(ch.Attached))
		return c, nil
	})
}

func (r *Repository) AttachItem(ctx context.Context, cartID, itemID int64) error {
	const op = "Carts.AttachItem"
	return r.runner.Run(ctx, op, func(dbc dbctx.Context) error {
		c, err := requireCart(op, dbc.UoW, cartID)
		if err != nil {
			return err
		}
		it, err := requireItem(op, dbc.UoW, itemID)
		if err != nil {
			return err
		}
		var from *carts.Cart
		if owner, ok := it.Owner(); ok && owner != c.ID {
			prev, found, err := loadCart(dbc.UoW, owner, true)
			if err != nil {
				return err
			}
			if found {
				from = prev
			} else {
				// Stale back-reference to a cart that no longer exists.
				it.CartID = nil
			}
		}
		changed, err := r.rel.Move(from, c, it)
		if err != nil || !changed {
			return err
		}
		return dbc.UoW.Save(it)
	})
}

func (r *Repository) DetachItem(ctx context.Context, cartID, itemID int64) error {
	const op = "Carts.DetachItem"
	return r.runner.Run(ctx, op, func(dbc dbctx.Context) error {
		c, err := requireCart(op, dbc.UoW, cartID)
		if err != nil {
			return err
		}
		it, err := requireItem(op, dbc.UoW, itemID)
		if err != nil {
			return err
		}
		changed, err := r.rel.Detach(c, it)
		if err != nil || !changed {
			return err
		}
		return dbc.UoW.Save(it)
	})
}

func (r *Repository) FetchCartWithItems(ctx context.Context, id int64) (*carts.Cart, error) {
	const op = "Carts.FetchCartWithItems"
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) (*carts.Cart, error) {
		c, found, err := loadCart(dbc.UoW, id, true)
		if err != nil || !found {
			return nil, err
		}
		return c, nil
	})
}

func (r *Repository) ListCartsWithItems(ctx context.Context) ([]*carts.Cart, error) {
	const op = "Carts.ListCartsWithItems"
	return RunWithResult(ctx, r.runner, op, func(dbc dbctx.Context) ([]*carts.Cart, error) {
		var all []*carts.Cart
		if err := dbc.UoW.Query(&all, store.All()); err != nil {
			return nil, err
		}
		var owned []*carts.Item
		if err := dbc.UoW.Query(&owned, store.Where(store.NotNull("cart_id"))); err != nil {
			return nil, err
		}
		byCart := make(map[int64][]*carts.Item, len(all))
		for _, it := range owned {
			if owner, ok := it.Owner(); ok {
				byCart[owner] = append(byCart[owner], it)
			}
		}
		for _, c := range all {
			c.SetItems(byCart[c.ID])
		}
		return all, nil
	})
}

// Purge deletes the given carts, then the given items, each in its own unit
// of work. Failures are logged and collected without stopping the remaining
// deletes.
func (r *Repository) Purge(ctx context.Context, cartIDs, itemIDs []int64) error {
	const op = "Carts.Purge"
	var errs []error
	for _, id := range cartIDs {
		if err := Delete[carts.Cart](ctx, r, id); err != nil {
			r.hooks.IncTeardownFailure(op)
			r.log.Warn("purge: cart delete failed", "cart_id", id, "error", err)
			errs = append(errs, err)
		}
	}
	for _, id := range itemIDs {
		if err := Delete[carts.Item](ctx, r, id); err != nil {
			r.hooks.IncTeardownFailure(op)
			r.log.Warn("purge: item delete failed", "item_id", id, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deleteCart applies the delete policy to the members before removing the
// cart row. A missing cart is a no-op.
func (r *Repository) deleteCart(uow store.UnitOfWork, id int64) error {
	c, found, err := loadCart(uow, id, true)
	if err != nil || !found {
		return err
	}
	members := append([]*carts.Item(nil), c.Items...)
	for _, it := range members {
		switch r.policy {
		case carts.DeleteCascade:
			if err := uow.Remove(it); err != nil {
				return err
			}
		default:
			if _, err := r.rel.Detach(c, it); err != nil {
				return err
			}
			if err := uow.Save(it); err != nil {
				return err
			}
		}
	}
	r.log.Debug("cart deleted", "cart_id", id, "policy", string(r.policy), "members", len(members))
	return uow.Remove(c)
}

func loadCart(uow store.UnitOfWork, id int64, withItems bool) (*carts.Cart, bool, error) {
	var c carts.Cart
	found, err := uow.Get(&c, id)
	if err != nil || !found {
		return nil, false, err
	}
	if withItems {
		var members []*carts.Item
		if err := uow.Query(&members, store.OwnedBy(c.ID)); err != nil {
			return nil, false, err
		}
		c.SetItems(members)
	}
	return &c, true, nil
}

func requireCart(op string, uow store.UnitOfWork, id int64) (*carts.Cart, error) {
	c, found, err := loadCart(uow, id, true)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainagg.NotFound(op, carts.Kind[carts.Cart](), id)
	}
	return c, nil
}

func requireItem(op string, uow store.UnitOfWork, id int64) (*carts.Item, error) {
	var it carts.Item
	found, err := uow.Get(&it, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainagg.NotFound(op, carts.Kind[carts.Item](), id)
	}
	return &it, nil
}

// resolver loads the unit of work's copies of the requested items.
func resolver(uow store.UnitOfWork) carts.Resolver {
	return func(ids []int64) ([]*carts.Item, error) {
		out := make([]*carts.Item, 0, len(ids))
		for _, id := range ids {
			var it carts.Item
			found, err := uow.Get(&it, id)
			if err != nil {
				return nil, err
			}
			if found {
				out = append(out, &it)
			}
		}
		return out, nil
	}
}
