package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/cartledger/internal/data/store/memory"
	"github.com/yungbote/cartledger/internal/domain/carts"
	"github.com/yungbote/cartledger/internal/platform/dbctx"
)

func TestInjectedTxRunner_CommitsOnSuccess(t *testing.T) {
	r := &InjectedTxRunner{}
	called := false
	err := r.InTx(context.Background(), "op", func(_ dbctx.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !called {
		t.Fatalf("expected callback to run")
	}
	if r.BeginCalls != 1 || r.CommitCalls != 1 || r.RollbackCalls != 0 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunner_FailCommitTriggersRollback(t *testing.T) {
	commitErr := errors.New("commit failed")
	r := &InjectedTxRunner{FailCommit: commitErr}
	err := r.InTx(context.Background(), "op", func(_ dbctx.Context) error {
		return nil
	})
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit err, got %v", err)
	}
	if r.BeginCalls != 1 || r.CommitCalls != 0 || r.RollbackCalls != 1 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedStore_FailCommitKeepsInnerActive(t *testing.T) {
	commitErr := errors.New("commit failed")
	s := &InjectedStore{Inner: memory.New(nil), FailCommit: commitErr}
	u, err := s.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := u.Save(carts.NewItem("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := u.Commit(); !errors.Is(err, commitErr) {
		t.Fatalf("commit: want injected error, got=%v", err)
	}
	if !u.Active() {
		t.Fatalf("inner unit of work should still be active")
	}
	_ = u.Close()
	open, commit, rollback, closed := s.Counts()
	if open != 1 || commit != 1 || rollback != 0 || closed != 1 {
		t.Fatalf("counts open=%d commit=%d rollback=%d close=%d", open, commit, rollback, closed)
	}
}

func TestInjectedStore_FailSaveAfter(t *testing.T) {
	saveErr := errors.New("disk full")
	s := &InjectedStore{Inner: memory.New(nil), FailSave: saveErr, FailSaveAfter: 1}
	u, _ := s.Open(context.Background())
	defer u.Close()
	if err := u.Save(carts.NewItem("first")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := u.Save(carts.NewItem("second")); !errors.Is(err, saveErr) {
		t.Fatalf("second save: want injected error, got=%v", err)
	}
}
