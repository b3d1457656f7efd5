// Package aggregates implements the cart aggregate over a store.Store.
//
// Every exported operation runs inside exactly one unit of work opened by a
// TxRunner; failures are rolled back and surface as a transaction error whose
// chain carries the coded cause from internal/domain/aggregates.
package aggregates
