package carts

// Entity is the closed set of persisted record types.
type Entity interface {
	Cart | Item
}

// Kind names an entity type for logs and errors.
func Kind[T Entity]() string {
	var zero T
	switch any(&zero).(type) {
	case *Cart:
		return "cart"
	default:
		return "item"
	}
}

// DeletePolicy decides what happens to a cart's items when the cart is deleted.
type DeletePolicy string

const (
	// DeleteOrphan clears every member's back-reference and keeps the items.
	DeleteOrphan DeletePolicy = "orphan"
	// DeleteCascade removes every member together with the cart.
	DeleteCascade DeletePolicy = "cascade"
)

// Valid reports whether p is one of the known policies.
func (p DeletePolicy) Valid() bool {
	return p == DeleteOrphan || p == DeleteCascade
}
