package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/cartledger/internal/data/store"
)

// InjectedStore wraps a real Store and injects failures at the unit-of-work
// boundaries while counting calls.
type InjectedStore struct {
	Inner store.Store

	mu sync.Mutex

	FailOpen     error
	FailCommit   error
	FailRollback error
	FailClose    error
	// FailSave is returned by every Save after FailSaveAfter successful saves.
	FailSave      error
	FailSaveAfter int

	OpenCalls     int
	CommitCalls   int
	RollbackCalls int
	CloseCalls    int
	SaveCalls     int
}

var _ store.Store = (*InjectedStore)(nil)

func (s *InjectedStore) Open(ctx context.Context) (store.UnitOfWork, error) {
	s.mu.Lock()
	s.OpenCalls++
	failOpen := s.FailOpen
	s.mu.Unlock()
	if failOpen != nil {
		return nil, failOpen
	}
	inner, err := s.Inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &injectedUoW{UnitOfWork: inner, s: s}, nil
}

func (s *InjectedStore) Close() error { return s.Inner.Close() }

// Counts returns open, commit, rollback and close call counts.
func (s *InjectedStore) Counts() (open, commit, rollback, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.OpenCalls, s.CommitCalls, s.RollbackCalls, s.CloseCalls
}

type injectedUoW struct {
	store.UnitOfWork
	s *InjectedStore
}

func (u *injectedUoW) Save(entity any) error {
	u.s.mu.Lock()
	u.s.SaveCalls++
	fail := u.s.FailSave != nil && u.s.SaveCalls > u.s.FailSaveAfter
	err := u.s.FailSave
	u.s.mu.Unlock()
	if fail {
		return err
	}
	return u.UnitOfWork.Save(entity)
}

// Commit leaves the inner unit of work active when a failure is injected, so
// the caller still has to roll back.
func (u *injectedUoW) Commit() error {
	u.s.mu.Lock()
	u.s.CommitCalls++
	fail := u.s.FailCommit
	u.s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return u.UnitOfWork.Commit()
}

func (u *injectedUoW) Rollback() error {
	u.s.mu.Lock()
	u.s.RollbackCalls++
	fail := u.s.FailRollback
	u.s.mu.Unlock()
	err := u.UnitOfWork.Rollback()
	if fail != nil {
		return fail
	}
	return err
}

func (u *injectedUoW) Close() error {
	u.s.mu.Lock()
	u.s.CloseCalls++
	fail := u.s.FailClose
	u.s.mu.Unlock()
	err := u.UnitOfWork.Close()
	if fail != nil {
		return fail
	}
	return err
}
