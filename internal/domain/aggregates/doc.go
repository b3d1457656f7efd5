// Package aggregates holds the coded error taxonomy and the contract markers
// shared by aggregate façades. Nothing here knows about storage.
package aggregates
