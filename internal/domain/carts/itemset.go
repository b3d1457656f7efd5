package carts

import "sort"

// ItemSet is a target membership expressed as item identities.
//
// A nil *ItemSet means "leave membership untouched"; a non-nil empty set means
// "detach everything". Only ids are retained, so instances handed in by a
// caller are never mistaken for the unit of work's managed copies.
type ItemSet struct {
	ids       map[int64]struct{}
	transient int
}

// NewItemSet builds a set from item instances. Transient instances are
// counted and rejected when the set is reconciled.
func NewItemSet(items ...*Item) *ItemSet {
	s := &ItemSet{ids: make(map[int64]struct{}, len(items))}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// ItemIDs builds a set from ids.
func ItemIDs(ids ...int64) *ItemSet {
	s := &ItemSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.AddID(id)
	}
	return s
}

// Add records the identity of it; a transient item is only counted.
func (s *ItemSet) Add(it *Item) {
	if it == nil {
		return
	}
	if it.ID == 0 {
		s.transient++
		return
	}
	s.AddID(it.ID)
}

// AddID records id; a zero id is counted as transient.
func (s *ItemSet) AddID(id int64) {
	if id == 0 {
		s.transient++
		return
	}
	if s.ids == nil {
		s.ids = map[int64]struct{}{}
	}
	s.ids[id] = struct{}{}
}

// Contains reports whether id is in the set.
func (s *ItemSet) Contains(id int64) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of distinct identities.
func (s *ItemSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Transient returns how many transient items were offered to the set.
func (s *ItemSet) Transient() int {
	if s == nil {
		return 0
	}
	return s.transient
}

// IDs returns the identities in ascending order.
func (s *ItemSet) IDs() []int64 {
	if s == nil {
		return nil
	}
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
