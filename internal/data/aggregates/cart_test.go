package aggregates_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/yungbote/cartledger/internal/data/aggregates"
	"github.com/yungbote/cartledger/internal/data/aggregates/testutil"
	"github.com/yungbote/cartledger/internal/data/db"
	"github.com/yungbote/cartledger/internal/data/store"
	"github.com/yungbote/cartledger/internal/data/store/gormstore"
	"github.com/yungbote/cartledger/internal/data/store/memory"
	domainagg "github.com/yungbote/cartledger/internal/domain/aggregates"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

type backend struct {
	name string
	open func(t *testing.T) store.Store
}

var backends = []backend{
	{"memory", func(t *testing.T) store.Store { return memory.New(logger.Nop()) }},
	{"sqlite", func(t *testing.T) store.Store {
		gdb, err := db.Open(db.SQLiteFileConfig(t.TempDir()), logger.Nop())
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		s := gormstore.New(gdb, logger.Nop())
		t.Cleanup(func() { _ = s.Close() })
		return s
	}},
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store store.Store
	repo  *aggregates.Repository
	hooks *testutil.HooksRecorder
}

func forEachBackend(t *testing.T, policy carts.DeletePolicy, fn func(f *fixture)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			hooks := &testutil.HooksRecorder{}
			repo := aggregates.NewCartAggregate(aggregates.CartAggregateDeps{
				Base:   aggregates.BaseDeps{Store: s, Log: logger.Nop(), Hooks: hooks},
				Policy: policy,
			})
			fn(&fixture{t: t, ctx: context.Background(), store: s, repo: repo, hooks: hooks})
		})
	}
}

func (f *fixture) cart(label string) *carts.Cart {
	f.t.Helper()
	c, err := f.repo.CreateCart(f.ctx, label)
	if err != nil {
		f.t.Fatalf("create cart: %v", err)
	}
	return c
}

func (f *fixture) items(names ...string) []*carts.Item {
	f.t.Helper()
	out := make([]*carts.Item, 0, len(names))
	for _, n := range names {
		it, err := f.repo.CreateItem(f.ctx, n)
		if err != nil {
			f.t.Fatalf("create item: %v", err)
		}
		out = append(out, it)
	}
	return out
}

func (f *fixture) update(id int64, label *string, set *carts.ItemSet) *carts.Cart {
	f.t.Helper()
	c, err := f.repo.UpdateCart(f.ctx, id, label, set)
	if err != nil {
		f.t.Fatalf("update cart %d: %v", id, err)
	}
	return c
}

func (f *fixture) fetch(id int64) *carts.Cart {
	f.t.Helper()
	c, err := f.repo.FetchCartWithItems(f.ctx, id)
	if err != nil {
		f.t.Fatalf("fetch cart %d: %v", id, err)
	}
	return c
}

func (f *fixture) item(id int64) *carts.Item {
	f.t.Helper()
	it, err := aggregates.Get[carts.Item](f.ctx, f.repo, id)
	if err != nil {
		f.t.Fatalf("get item %d: %v", id, err)
	}
	return it
}

// assertSymmetric reloads everything and checks both directions of the
// relationship.
func (f *fixture) assertSymmetric() {
	f.t.Helper()
	all, err := f.repo.ListCartsWithItems(f.ctx)
	if err != nil {
		f.t.Fatalf("list carts: %v", err)
	}
	items, err := aggregates.List[carts.Item](f.ctx, f.repo, store.All())
	if err != nil {
		f.t.Fatalf("list items: %v", err)
	}
	member := map[int64]int64{}
	for _, c := range all {
		for _, it := range c.Items {
			if prev, dup := member[it.ID]; dup {
				f.t.Fatalf("item %d is a member of carts %d and %d", it.ID, prev, c.ID)
			}
			member[it.ID] = c.ID
		}
	}
	for _, it := range items {
		owner, owned := it.Owner()
		cartID, isMember := member[it.ID]
		if owned != isMember || (owned && owner != cartID) {
			f.t.Fatalf("item %d: cart_id=%v member of=%v", it.ID, it.CartID, cartID)
		}
	}
}

func label(s string) *string { return &s }

func TestScenarioReplaceMembership(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c1 := f.cart("Cart 1")
		e := f.items("Item 1", "Item 2", "Item 3")

		got := f.update(c1.ID, label("Cart 1"), carts.NewItemSet(e...))
		if len(got.Items) != 3 {
			f.t.Fatalf("size after first update: want=3 got=%d", len(got.Items))
		}
		f.assertSymmetric()

		got = f.update(c1.ID, label("Cart 1"), carts.ItemIDs(e[0].ID, e[1].ID))
		if len(got.Items) != 2 {
			f.t.Fatalf("size after second update: want=2 got=%d", len(got.Items))
		}
		if f.item(e[2].ID).CartID != nil {
			f.t.Fatalf("dropped item still points at the cart")
		}
		if !reflect.DeepEqual(f.fetch(c1.ID).ItemIDs(), []int64{e[0].ID, e[1].ID}) {
			f.t.Fatalf("membership: %v", f.fetch(c1.ID).ItemIDs())
		}
		f.assertSymmetric()
	})
}

func TestScenarioMoveBetweenCarts(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c1, c2 := f.cart("Cart 1"), f.cart("Cart 2")
		e := f.items("Item 1", "Item 2")
		f.update(c1.ID, label("Cart 1"), carts.NewItemSet(e...))

		f.update(c2.ID, label("Cart 2"), carts.ItemIDs(e[0].ID))
		if !f.item(e[0].ID).OwnedBy(c2.ID) {
			f.t.Fatalf("moved item does not point at the destination")
		}
		if f.fetch(c1.ID).HasItem(e[0]) {
			f.t.Fatalf("moved item still listed in the source cart")
		}
		f.assertSymmetric()
	})
}

func TestUpdateWithNilSetChangesOnlyLabel(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("before")
		e := f.items("a", "b")
		f.update(c.ID, label("before"), carts.NewItemSet(e...))

		got := f.update(c.ID, label("after"), nil)
		if got.LabelOr("") != "after" {
			f.t.Fatalf("label: %q", got.LabelOr(""))
		}
		if !reflect.DeepEqual(f.fetch(c.ID).ItemIDs(), []int64{e[0].ID, e[1].ID}) {
			f.t.Fatalf("membership changed by a nil set")
		}

		got = f.update(c.ID, nil, nil)
		if got.Label != nil || f.fetch(c.ID).Label != nil {
			f.t.Fatalf("nil label should clear the label")
		}
	})
}

func TestUpdateWithEmptySetClears(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("c")
		e := f.items("a", "b")
		f.update(c.ID, label("c"), carts.NewItemSet(e...))

		got := f.update(c.ID, label("c"), carts.ItemIDs())
		if len(got.Items) != 0 || len(f.fetch(c.ID).Items) != 0 {
			f.t.Fatalf("membership not cleared")
		}
		for _, it := range e {
			if f.item(it.ID).CartID != nil {
				f.t.Fatalf("item %d keeps its back-reference", it.ID)
			}
		}
		f.assertSymmetric()
	})
}

func TestDuplicatesAndIdempotentEdits(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("c")
		e := f.items("a")

		got := f.update(c.ID, label("c"), carts.ItemIDs(e[0].ID, e[0].ID, e[0].ID))
		if len(got.Items) != 1 {
			f.t.Fatalf("duplicates: want=1 got=%d", len(got.Items))
		}
		for i := 0; i < 2; i++ {
			if err := f.repo.AttachItem(f.ctx, c.ID, e[0].ID); err != nil {
				f.t.Fatalf("attach #%d: %v", i, err)
			}
		}
		if len(f.fetch(c.ID).Items) != 1 {
			f.t.Fatalf("attach is not idempotent")
		}
		for i := 0; i < 2; i++ {
			if err := f.repo.DetachItem(f.ctx, c.ID, e[0].ID); err != nil {
				f.t.Fatalf("detach #%d: %v", i, err)
			}
		}
		if len(f.fetch(c.ID).Items) != 0 || f.item(e[0].ID).CartID != nil {
			f.t.Fatalf("detach left membership behind")
		}
		f.assertSymmetric()
	})
}

func TestAttachItemMovesFromPreviousCart(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c1, c2 := f.cart("1"), f.cart("2")
		e := f.items("a")
		if err := f.repo.AttachItem(f.ctx, c1.ID, e[0].ID); err != nil {
			f.t.Fatalf("attach to c1: %v", err)
		}
		if err := f.repo.AttachItem(f.ctx, c2.ID, e[0].ID); err != nil {
			f.t.Fatalf("attach to c2: %v", err)
		}
		if len(f.fetch(c1.ID).Items) != 0 || len(f.fetch(c2.ID).Items) != 1 {
			f.t.Fatalf("item not moved")
		}
		f.assertSymmetric()
	})
}

func TestNotFoundErrors(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("c")
		if _, err := f.repo.RenameItem(f.ctx, 4242, "x"); !domainagg.IsNotFound(err) || !domainagg.IsTransaction(err) {
			f.t.Fatalf("rename missing item: %v", err)
		}
		if _, err := f.repo.UpdateCart(f.ctx, 4242, nil, nil); !domainagg.IsNotFound(err) {
			f.t.Fatalf("update missing cart: %v", err)
		}
		if _, err := f.repo.UpdateCart(f.ctx, c.ID, nil, carts.ItemIDs(4242)); !domainagg.IsNotFound(err) {
			f.t.Fatalf("unknown target id: %v", err)
		}
		if err := f.repo.AttachItem(f.ctx, c.ID, 4242); !domainagg.IsNotFound(err) {
			f.t.Fatalf("attach missing item: %v", err)
		}
		if f.hooks.LastStatus() != string(domainagg.CodeNotFound) {
			f.t.Fatalf("status: want=not_found got=%s", f.hooks.LastStatus())
		}
		got, err := f.repo.FetchCartWithItems(f.ctx, 4242)
		if err != nil || got != nil {
			f.t.Fatalf("fetch missing: got=%v err=%v", got, err)
		}
		item, err := aggregates.Get[carts.Item](f.ctx, f.repo, 4242)
		if err != nil || item != nil {
			f.t.Fatalf("get missing: got=%v err=%v", item, err)
		}
	})
}

func TestFailedUpdateLeavesNoTrace(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("c")
		e := f.items("a", "b")
		f.update(c.ID, label("c"), carts.ItemIDs(e[0].ID))

		// a detaches, then the unknown id fails the whole unit of work
		_, err := f.repo.UpdateCart(f.ctx, c.ID, label("renamed"), carts.ItemIDs(e[1].ID, 4242))
		if !domainagg.IsNotFound(err) {
			f.t.Fatalf("want not_found, got=%v", err)
		}
		got := f.fetch(c.ID)
		if got.LabelOr("") != "c" || !reflect.DeepEqual(got.ItemIDs(), []int64{e[0].ID}) {
			f.t.Fatalf("partial update committed: label=%q ids=%v", got.LabelOr(""), got.ItemIDs())
		}
		if f.item(e[1].ID).CartID != nil {
			f.t.Fatalf("partial attach committed")
		}
	})
}

func TestRenameItem(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		e := f.items("old")
		got, err := f.repo.RenameItem(f.ctx, e[0].ID, "new")
		if err != nil || got.Name != "new" {
			f.t.Fatalf("rename: got=%v err=%v", got, err)
		}
		if f.item(e[0].ID).Name != "new" {
			f.t.Fatalf("rename not persisted")
		}
	})
}

func TestDeleteOrphanPolicy(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("c")
		e := f.items("a", "b")
		f.update(c.ID, label("c"), carts.NewItemSet(e...))

		if err := aggregates.Delete[carts.Cart](f.ctx, f.repo, c.ID); err != nil {
			f.t.Fatalf("delete: %v", err)
		}
		if f.fetch(c.ID) != nil {
			f.t.Fatalf("cart still present")
		}
		for _, it := range e {
			got := f.item(it.ID)
			if got == nil || got.CartID != nil {
				f.t.Fatalf("item %d: want orphaned survivor, got=%v", it.ID, got)
			}
		}
		if err := aggregates.Delete[carts.Cart](f.ctx, f.repo, 99999); err != nil {
			f.t.Fatalf("deleting a missing cart must succeed: %v", err)
		}
		f.assertSymmetric()
	})
}

func TestDeleteCascadePolicy(t *testing.T) {
	forEachBackend(t, carts.DeleteCascade, func(f *fixture) {
		c := f.cart("c")
		e := f.items("a", "b", "free")
		f.update(c.ID, label("c"), carts.ItemIDs(e[0].ID, e[1].ID))

		if err := aggregates.Delete[carts.Cart](f.ctx, f.repo, c.ID); err != nil {
			f.t.Fatalf("delete: %v", err)
		}
		left, err := aggregates.List[carts.Item](f.ctx, f.repo, store.All())
		if err != nil {
			f.t.Fatalf("list: %v", err)
		}
		if len(left) != 1 || left[0].ID != e[2].ID {
			f.t.Fatalf("cascade left: %+v", left)
		}
	})
}

func TestDeleteItemDropsMembership(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("c")
		e := f.items("a", "b")
		f.update(c.ID, label("c"), carts.NewItemSet(e...))
		if err := aggregates.Delete[carts.Item](f.ctx, f.repo, e[0].ID); err != nil {
			f.t.Fatalf("delete item: %v", err)
		}
		if !reflect.DeepEqual(f.fetch(c.ID).ItemIDs(), []int64{e[1].ID}) {
			f.t.Fatalf("membership after item delete: %v", f.fetch(c.ID).ItemIDs())
		}
		if err := aggregates.Delete[carts.Item](f.ctx, f.repo, 99999); err != nil {
			f.t.Fatalf("deleting a missing item must succeed: %v", err)
		}
	})
}

func TestListWithPredicate(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("Cart 1")
		f.cart("Other")
		e := f.items("Item 1", "Item 2", "Loose")
		f.update(c.ID, label("Cart 1"), carts.ItemIDs(e[0].ID, e[1].ID))

		owned, err := aggregates.List[carts.Item](f.ctx, f.repo, store.OwnedBy(c.ID))
		if err != nil || len(owned) != 2 {
			f.t.Fatalf("owned: n=%d err=%v", len(owned), err)
		}
		cs, err := aggregates.List[carts.Cart](f.ctx, f.repo, store.LabelLike("Cart%"))
		if err != nil || len(cs) != 1 || cs[0].ID != c.ID {
			f.t.Fatalf("carts like: %+v err=%v", cs, err)
		}
		if _, err := aggregates.List[carts.Cart](f.ctx, f.repo, store.Where(store.Eq("cart_id", 1))); !domainagg.IsConstraintViolation(err) {
			f.t.Fatalf("unknown column: want constraint violation, got=%v", err)
		}
	})
}

func TestPredicatesAgreeAcrossStores(t *testing.T) {
	forEachBackend(t, carts.DeleteOrphan, func(f *fixture) {
		c := f.cart("Cart 1")
		f.cart("cart 2")
		e := f.items("Item 1", "a*b", "a?b", "Loose")
		f.update(c.ID, label("Cart 1"), carts.ItemIDs(e[0].ID))

		carts1, err := aggregates.List[carts.Cart](f.ctx, f.repo, store.LabelLike("cart%"))
		if err != nil || len(carts1) != 1 || carts1[0].LabelOr("") != "cart 2" {
			f.t.Fatalf("case-sensitive like: %+v err=%v", carts1, err)
		}
		cases := []struct {
			pattern string
			want    int
		}{
			{"item%", 0},
			{"Item _", 1},
			{"a*b", 1},
			{"a?b", 1},
			{"a_b", 2},
			{"%", 4},
		}
		for _, tc := range cases {
			got, err := aggregates.List[carts.Item](f.ctx, f.repo, store.NameLike(tc.pattern))
			if err != nil || len(got) != tc.want {
				f.t.Fatalf("like %q: want=%d got=%d err=%v", tc.pattern, tc.want, len(got), err)
			}
		}

		var nilOwner *int64
		for _, p := range []store.Predicate{
			store.Where(store.Eq("cart_id", nil)),
			store.Where(store.Ne("cart_id", nil)),
			store.Where(store.Eq("cart_id", nilOwner)),
		} {
			if _, err := aggregates.List[carts.Item](f.ctx, f.repo, p); !domainagg.IsConstraintViolation(err) {
				f.t.Fatalf("%s: want constraint violation, got=%v", p, err)
			}
		}
		loose, err := aggregates.List[carts.Item](f.ctx, f.repo, store.Unowned())
		if err != nil || len(loose) != 3 {
			f.t.Fatalf("unowned: n=%d err=%v", len(loose), err)
		}
	})
}

func TestPurgeContinuesPastFailures(t *testing.T) {
	inner := memory.New(logger.Nop())
	s := &testutil.InjectedStore{Inner: inner}
	hooks := &testutil.HooksRecorder{}
	repo := aggregates.NewCartAggregate(aggregates.CartAggregateDeps{
		Base: aggregates.BaseDeps{Store: s, Hooks: hooks},
	})
	ctx := context.Background()
	c, _ := repo.CreateCart(ctx, "c")
	it, _ := repo.CreateItem(ctx, "i")
	if _, err := repo.UpdateCart(ctx, c.ID, nil, carts.ItemIDs(it.ID)); err != nil {
		t.Fatalf("update: %v", err)
	}

	saveErr := errors.New("disk full")
	s.FailSave, s.FailSaveAfter = saveErr, s.SaveCalls
	err := repo.Purge(ctx, []int64{c.ID}, []int64{it.ID})
	if !errors.Is(err, saveErr) {
		t.Fatalf("purge: want joined save failure, got=%v", err)
	}
	if len(hooks.TeardownFailures) != 1 {
		t.Fatalf("teardown failures: %v", hooks.TeardownFailures)
	}
	left, _ := aggregates.List[carts.Item](ctx, repo, store.All())
	if len(left) != 0 {
		t.Fatalf("item delete skipped after cart failure: %+v", left)
	}
	if cart, _ := repo.FetchCartWithItems(ctx, c.ID); cart == nil {
		t.Fatalf("failed cart delete was committed")
	}
}

func TestInvalidPolicyFallsBackToOrphan(t *testing.T) {
	repo := aggregates.NewCartAggregate(aggregates.CartAggregateDeps{
		Base:   aggregates.BaseDeps{Store: memory.New(nil)},
		Policy: carts.DeletePolicy("nuke"),
	})
	if repo.Policy() != carts.DeleteOrphan {
		t.Fatalf("policy: want=orphan got=%s", repo.Policy())
	}
	if !repo.Contract().RequiresAggregateOwnedTx() {
		t.Fatalf("cart aggregate must own its transactions")
	}
}
