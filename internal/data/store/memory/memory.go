// Package memory is an in-process Store: carts and items live in maps keyed
// by id. A unit of work works on a cloned copy of the state that replaces the
// committed state on Commit. Units of work are serialized; one holds the store
// from Open until Close.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/cartledger/internal/data/store"
	"github.com/yungbote/cartledger/internal/domain/aggregates"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

type state struct {
	carts map[int64]*carts.Cart
	items map[int64]*carts.Item
	// per-table id sequences
	nextCart int64
	nextItem int64
}

func newState() state {
	return state{
		carts:    map[int64]*carts.Cart{},
		items:    map[int64]*carts.Item{},
		nextCart: 1,
		nextItem: 1,
	}
}

func (s state) clone() state {
	out := state{
		carts:    make(map[int64]*carts.Cart, len(s.carts)),
		items:    make(map[int64]*carts.Item, len(s.items)),
		nextCart: s.nextCart,
		nextItem: s.nextItem,
	}
	for k, v := range s.carts {
		out.carts[k] = v.Clone()
	}
	for k, v := range s.items {
		out.items[k] = v.Clone()
	}
	return out
}

type Store struct {
	log   *logger.Logger
	nowFn func() time.Time

	// sem is held by the open unit of work.
	sem chan struct{}

	mu     sync.Mutex
	state  state
	closed bool
}

var _ store.Store = (*Store)(nil)

func New(log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		log:   log.With("store", "memory"),
		nowFn: func() time.Time { return time.Now().UTC() },
		sem:   make(chan struct{}, 1),
		state: newState(),
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// Open waits for the previous unit of work to close or ctx to end.
func (s *Store) Open(ctx context.Context) (store.UnitOfWork, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.sem
		return nil, store.ErrStoreClosed
	}
	working := s.state.clone()
	now := s.nowFn
	s.mu.Unlock()

	u := &unitOfWork{
		id:      uuid.NewString(),
		store:   s,
		working: working,
		now:     now,
		active:  true,
	}
	s.log.Debug("unit of work opened", "uow", u.id)
	return u, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) commit(working state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = working
}

func (s *Store) release() { <-s.sem }

type unitOfWork struct {
	id      string
	store   *Store
	working state
	now     func() time.Time
	active  bool
	closed  bool
}

func (u *unitOfWork) ID() string   { return u.id }
func (u *unitOfWork) Active() bool { return u.active }

func (u *unitOfWork) Get(dest any, id int64) (bool, error) {
	if !u.active {
		return false, store.ErrUnitOfWorkDone
	}
	switch d := dest.(type) {
	case *carts.Cart:
		row, ok := u.working.carts[id]
		if !ok {
			return false, nil
		}
		*d = *row.Clone()
		return true, nil
	case *carts.Item:
		row, ok := u.working.items[id]
		if !ok {
			return false, nil
		}
		*d = *row.Clone()
		return true, nil
	default:
		return false, fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, dest)
	}
}

func (u *unitOfWork) Save(entity any) error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	now := u.now()
	switch e := entity.(type) {
	case *carts.Cart:
		if e == nil {
			return fmt.Errorf("%w: nil cart", store.ErrUnsupportedEntity)
		}
		e.ID = sequence(&u.working.nextCart, e.ID)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		u.working.carts[e.ID] = e.Clone()
		return nil
	case *carts.Item:
		if e == nil {
			return fmt.Errorf("%w: nil item", store.ErrUnsupportedEntity)
		}
		e.ID = sequence(&u.working.nextItem, e.ID)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		u.working.items[e.ID] = e.Clone()
		return nil
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, entity)
	}
}

func (u *unitOfWork) Remove(entity any) error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	switch e := entity.(type) {
	case *carts.Cart:
		if e.Transient() {
			return store.ErrTransientEntity
		}
		delete(u.working.carts, e.ID)
		return nil
	case *carts.Item:
		if e.Transient() {
			return store.ErrTransientEntity
		}
		delete(u.working.items, e.ID)
		return nil
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, entity)
	}
}

func (u *unitOfWork) Query(dest any, p store.Predicate) error {
	const op = "store.memory.Query"
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	switch d := dest.(type) {
	case *[]*carts.Cart:
		known := func(col string) bool { _, ok := (&carts.Cart{}).Column(col); return ok }
		if err := p.Validate(known); err != nil {
			return aggregates.ConstraintViolation(op, err.Error())
		}
		out := make([]*carts.Cart, 0)
		for _, id := range sortedKeys(u.working.carts) {
			row := u.working.carts[id]
			if p.Match(row.Column) {
				out = append(out, row.Clone())
			}
		}
		*d = out
		return nil
	case *[]*carts.Item:
		known := func(col string) bool { _, ok := (&carts.Item{}).Column(col); return ok }
		if err := p.Validate(known); err != nil {
			return aggregates.ConstraintViolation(op, err.Error())
		}
		out := make([]*carts.Item, 0)
		for _, id := range sortedKeys(u.working.items) {
			row := u.working.items[id]
			if p.Match(row.Column) {
				out = append(out, row.Clone())
			}
		}
		*d = out
		return nil
	default:
		return fmt.Errorf("%w: %T", store.ErrUnsupportedEntity, dest)
	}
}

func (u *unitOfWork) Commit() error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	u.store.commit(u.working)
	u.active = false
	u.store.log.Debug("unit of work committed", "uow", u.id)
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.active {
		return store.ErrUnitOfWorkDone
	}
	u.working = state{}
	u.active = false
	u.store.log.Debug("unit of work rolled back", "uow", u.id)
	return nil
}

func (u *unitOfWork) Close() error {
	if u.closed {
		return nil
	}
	if u.active {
		_ = u.Rollback()
	}
	u.closed = true
	u.store.release()
	return nil
}

// sequence assigns the next id when id is 0 and keeps next ahead of
// explicitly chosen ids.
func sequence(next *int64, id int64) int64 {
	if id == 0 {
		id = *next
	}
	if id >= *next {
		*next = id + 1
	}
	return id
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
