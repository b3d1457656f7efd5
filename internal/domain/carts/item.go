package carts

import "time"

// Item is the "many" side of the relationship. CartID is a weak, id-based
// reference to the owning cart.
type Item struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name   string `gorm:"column:name;not null" json:"name"`
	CartID *int64 `gorm:"column:cart_id;index" json:"cart_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the gorm table name.
func (Item) TableName() string { return "item" }

// NewItem returns a transient item.
func NewItem(name string) *Item {
	return &Item{Name: name}
}

// Transient reports whether the item has not been assigned an id yet.
func (it *Item) Transient() bool { return it == nil || it.ID == 0 }

// OwnedBy reports whether the back-reference points at cartID.
func (it *Item) OwnedBy(cartID int64) bool {
	return it != nil && it.CartID != nil && *it.CartID == cartID
}

// Owner returns the owning cart id and whether one is set.
func (it *Item) Owner() (int64, bool) {
	if it == nil || it.CartID == nil {
		return 0, false
	}
	return *it.CartID, true
}

func (it *Item) setOwner(cartID int64) {
	id := cartID
	it.CartID = &id
}

func (it *Item) clearOwner() { it.CartID = nil }

// Column exposes the persisted columns for predicate evaluation. A nil
// cart_id is reported as an untyped nil.
func (it *Item) Column(name string) (any, bool) {
	switch name {
	case "id":
		return it.ID, true
	case "name":
		return it.Name, true
	case "cart_id":
		if it.CartID == nil {
			return nil, true
		}
		return *it.CartID, true
	default:
		return nil, false
	}
}

// Clone returns a detached copy, including its own CartID pointer.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	cp := *it
	if it.CartID != nil {
		id := *it.CartID
		cp.CartID = &id
	}
	return &cp
}

// SameItem reports whether a and b denote the same logical item.
func SameItem(a, b *Item) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != 0 && b.ID != 0 {
		return a.ID == b.ID
	}
	return a == b
}
