package carts

import (
	"fmt"

	"github.com/yungbote/cartledger/internal/domain/aggregates"
)

// Resolver loads the managed instances for the given item ids. Ids that do
// not resolve are simply absent from the result.
type Resolver func(ids []int64) ([]*Item, error)

// Changes lists the membership edits applied by a reconcile.
type Changes struct {
	Detached []*Item
	Attached []*Item
	// PreviousOwner maps attached item ids to the cart they were taken from.
	PreviousOwner map[int64]int64
}

// Empty reports whether nothing was attached or detached.
func (c Changes) Empty() bool { return len(c.Detached) == 0 && len(c.Attached) == 0 }

// Touched returns every item whose back-reference changed, detaches first.
func (c Changes) Touched() []*Item {
	out := make([]*Item, 0, len(c.Detached)+len(c.Attached))
	out = append(out, c.Detached...)
	return append(out, c.Attached...)
}

// RelationshipManager keeps Cart.Items and Item.CartID symmetric. It holds
// no state and never talks to the Store.
type RelationshipManager struct{}

// Attach makes it a member of c and points it back at c. It returns false
// when it was already a member. An item owned by another cart is rejected
// with a ConstraintViolation; use Move so the other cart drops it too.
func (RelationshipManager) Attach(c *Cart, it *Item) (bool, error) {
	const op = "Carts.Relationship.Attach"
	if err := checkPair(op, c, it); err != nil {
		return false, err
	}
	if c.HasItem(it) {
		return false, nil
	}
	if owner, ok := it.Owner(); ok && owner != c.ID {
		return false, aggregates.ConstraintViolation(op, fmt.Sprintf("item %d belongs to cart %d; move it instead", it.ID, owner))
	}
	link(c, it)
	return true, nil
}

// Detach removes it from c and clears its back-reference. It returns false
// when it was not a member.
func (RelationshipManager) Detach(c *Cart, it *Item) (bool, error) {
	const op = "Carts.Relationship.Detach"
	if err := checkPair(op, c, it); err != nil {
		return false, err
	}
	var member *Item
	for _, cur := range c.Items {
		if SameItem(cur, it) {
			member = cur
			break
		}
	}
	if member == nil {
		return false, nil
	}
	c.Items, _ = removeItem(c.Items, it)
	member.clearOwner()
	if member != it && it.OwnedBy(c.ID) {
		it.clearOwner()
	}
	return true, nil
}

// Move detaches it from "from" (when given) before attaching it to "to", so
// the item is never a member of both carts. from must be the item's current
// owner when it has one.
func (m RelationshipManager) Move(from, to *Cart, it *Item) (bool, error) {
	if from != nil && !SameCart(from, to) {
		if _, err := m.Detach(from, it); err != nil {
			return false, err
		}
	}
	return m.Attach(to, it)
}

// Reconcile moves c's membership to target. A nil target is a no-op. Members
// missing from target are detached first; target ids missing from the
// membership are then resolved and attached. Items present on both sides are
// left alone.
func (m RelationshipManager) Reconcile(c *Cart, target *ItemSet, resolve Resolver) (Changes, error) {
	const op = "Carts.Relationship.Reconcile"
	var ch Changes
	if target == nil {
		return ch, nil
	}
	if err := checkCart(op, c); err != nil {
		return ch, err
	}
	if n := target.Transient(); n > 0 {
		return ch, aggregates.ConstraintViolation(op, fmt.Sprintf("target set contains %d transient item(s)", n))
	}

	current := append([]*Item(nil), c.Items...)
	for _, member := range current {
		if target.Contains(member.ID) {
			continue
		}
		if _, err := m.Detach(c, member); err != nil {
			return ch, err
		}
		ch.Detached = append(ch.Detached, member)
	}

	var missing []int64
	for _, id := range target.IDs() {
		if !c.HasItem(&Item{ID: id}) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return ch, nil
	}
	if resolve == nil {
		return ch, aggregates.NewError(aggregates.CodeInternal, op, "no item resolver configured", nil)
	}
	resolved, err := resolve(missing)
	if err != nil {
		return ch, err
	}
	byID := make(map[int64]*Item, len(resolved))
	for _, it := range resolved {
		if it != nil {
			byID[it.ID] = it
		}
	}
	for _, id := range missing {
		it := byID[id]
		if it == nil {
			return ch, aggregates.NotFound(op, "item", id)
		}
		// The previous owner is not loaded here; only the item's back-reference
		// moves and the caller persists it.
		if owner, ok := it.Owner(); ok && owner != c.ID {
			if ch.PreviousOwner == nil {
				ch.PreviousOwner = map[int64]int64{}
			}
			ch.PreviousOwner[id] = owner
		}
		link(c, it)
		ch.Attached = append(ch.Attached, it)
	}
	return ch, nil
}

func link(c *Cart, it *Item) {
	it.setOwner(c.ID)
	c.Items = append(c.Items, it)
}

func checkCart(op string, c *Cart) error {
	switch {
	case c == nil:
		return aggregates.ConstraintViolation(op, "cart is nil")
	case c.Transient():
		return aggregates.ConstraintViolation(op, "cart is transient")
	case !c.ItemsLoaded():
		return aggregates.ConstraintViolation(op, fmt.Sprintf("cart %d membership is not loaded", c.ID))
	}
	return nil
}

func checkPair(op string, c *Cart, it *Item) error {
	if err := checkCart(op, c); err != nil {
		return err
	}
	switch {
	case it == nil:
		return aggregates.ConstraintViolation(op, "item is nil")
	case it.Transient():
		return aggregates.ConstraintViolation(op, "item is transient")
	}
	return nil
}
