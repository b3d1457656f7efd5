package carts

import (
	"sort"
	"time"
)

// Cart is the "one" side of the cart/item relationship.
//
// Items is the materialized membership. It is populated by the Store layer on
// demand and never persisted as an association: membership lives in
// Item.CartID alone.
type Cart struct {
	ID    int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Label *string `gorm:"column:label" json:"label,omitempty"`
	Items []*Item `gorm:"foreignKey:CartID;references:ID" json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	itemsLoaded bool
}

// TableName pins the gorm table name.
func (Cart) TableName() string { return "cart" }

// NewCart returns a transient cart.
func NewCart(label string) *Cart {
	return &Cart{Label: &label}
}

// Transient reports whether the cart has not been assigned an id yet.
func (c *Cart) Transient() bool { return c == nil || c.ID == 0 }

// LabelOr returns the label, or def when it is nil.
func (c *Cart) LabelOr(def string) string {
	if c == nil || c.Label == nil {
		return def
	}
	return *c.Label
}

// SetLabel replaces the label; nil clears it.
func (c *Cart) SetLabel(label *string) {
	if label == nil {
		c.Label = nil
		return
	}
	v := *label
	c.Label = &v
}

// SetItems replaces the materialized membership, collapsing duplicate
// identities and ordering members by id.
func (c *Cart) SetItems(items []*Item) {
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		if it == nil || containsItem(out, it) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.Items = out
	c.itemsLoaded = true
}

// ItemsLoaded reports whether Items reflects Store membership.
func (c *Cart) ItemsLoaded() bool { return c != nil && c.itemsLoaded }

// HasItem reports whether it is a member by identity.
func (c *Cart) HasItem(it *Item) bool {
	if c == nil {
		return false
	}
	return containsItem(c.Items, it)
}

// ItemIDs returns member ids in ascending order.
func (c *Cart) ItemIDs() []int64 {
	if c == nil {
		return nil
	}
	ids := make([]int64, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Column exposes the persisted columns for predicate evaluation.
func (c *Cart) Column(name string) (any, bool) {
	switch name {
	case "id":
		return c.ID, true
	case "label":
		if c.Label == nil {
			return nil, true
		}
		return *c.Label, true
	default:
		return nil, false
	}
}

// Clone returns a detached copy. Members are not copied.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := &Cart{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	cp.SetLabel(c.Label)
	return cp
}

// SameCart reports whether a and b denote the same logical cart: equal ids
// when both are persisted, pointer identity otherwise.
func SameCart(a, b *Cart) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != 0 && b.ID != 0 {
		return a.ID == b.ID
	}
	return a == b
}

func containsItem(items []*Item, it *Item) bool {
	for _, cur := range items {
		if SameItem(cur, it) {
			return true
		}
	}
	return false
}

func removeItem(items []*Item, it *Item) ([]*Item, bool) {
	for i, cur := range items {
		if SameItem(cur, it) {
			return append(items[:i:i], items[i+1:]...), true
		}
	}
	return items, false
}
