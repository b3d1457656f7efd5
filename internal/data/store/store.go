// Package store defines the persistence contract the cart aggregate
// orchestrates. Adapters live in sub-packages: gormstore (sqlite/postgres via
// gorm) and memory (an in-process arena keyed by id).
//
// Entities passed to a UnitOfWork are *carts.Cart or *carts.Item; query
// destinations are *[]*carts.Cart or *[]*carts.Item. Anything else is
// rejected with ErrUnsupportedEntity.
package store

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedEntity is returned for values outside the cart/item set.
	ErrUnsupportedEntity = errors.New("store: unsupported entity type")
	// ErrTransientEntity is returned when removing an entity without an id.
	ErrTransientEntity = errors.New("store: entity is transient")
	// ErrUnitOfWorkDone is returned for calls on a committed, rolled back or closed unit of work.
	ErrUnitOfWorkDone = errors.New("store: unit of work is no longer active")
	// ErrStoreClosed is returned by Open after Close.
	ErrStoreClosed = errors.New("store: closed")
)

// Store opens units of work.
type Store interface {
	Open(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// UnitOfWork is a bounded sequence of operations committed or rolled back
// atomically. It is not safe for concurrent use.
type UnitOfWork interface {
	// ID identifies the unit of work in logs.
	ID() string
	// Get loads the entity with id into dest. It reports false, nil when no
	// row exists.
	Get(dest any, id int64) (bool, error)
	// Save inserts a transient entity (assigning its id) or updates a
	// persisted one. Cart.Items is never written.
	Save(entity any) error
	Remove(entity any) error
	// Query fills dest with every row matching p, ordered by id.
	Query(dest any, p Predicate) error
	Commit() error
	Rollback() error
	// Close releases the unit of work, rolling back if it is still active.
	// It is safe to call more than once.
	Close() error
	Active() bool
}
