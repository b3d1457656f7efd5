package carts

import (
	"context"

	"github.com/yungbote/cartledger/internal/domain/aggregates"
)

// CartAggregateContract documents transaction ownership for cart writes.
var CartAggregateContract = aggregates.Contract{
	Name:             "cart",
	WriteTxOwnership: aggregates.WriteTxOwnedByAggregate,
	ReadPolicy:       aggregates.ReadPolicyInvariantScoped,
	Notes:            "every operation opens its own unit of work; membership is persisted through item.cart_id only",
}

// CartAggregate is the façade over carts and items. Generic reads and deletes
// over Entity live next to the implementation as package functions.
type CartAggregate interface {
	aggregates.Aggregate

	CreateCart(ctx context.Context, label string) (*Cart, error)
	CreateItem(ctx context.Context, name string) (*Item, error)
	RenameItem(ctx context.Context, id int64, name string) (*Item, error)
	// UpdateCart sets the label (nil clears it) and reconciles membership
	// against items; a nil items leaves membership untouched.
	UpdateCart(ctx context.Context, id int64, label *string, items *ItemSet) (*Cart, error)
	AttachItem(ctx context.Context, cartID, itemID int64) error
	DetachItem(ctx context.Context, cartID, itemID int64) error
	// FetchCartWithItems returns nil, nil when the cart does not exist.
	FetchCartWithItems(ctx context.Context, id int64) (*Cart, error)
	ListCartsWithItems(ctx context.Context) ([]*Cart, error)
	Purge(ctx context.Context, cartIDs, itemIDs []int64) error
}
