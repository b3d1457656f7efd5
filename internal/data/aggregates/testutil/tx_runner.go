package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/cartledger/internal/data/aggregates"
	"github.com/yungbote/cartledger/internal/platform/dbctx"
)

// InjectedTxRunner is a test helper for aggregate tests that never need a
// Store. The callback receives a context without a unit of work.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin      error
	FailBeforeBody error
	FailCommit     error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
	Ops           []string
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	r.Ops = append(r.Ops, op)
	failBegin := r.FailBegin
	failBeforeBody := r.FailBeforeBody
	failCommit := r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.inc(&r.RollbackCalls)
		return failBeforeBody
	}
	if fn == nil {
		r.inc(&r.CommitCalls)
		return nil
	}
	if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
		r.inc(&r.RollbackCalls)
		return err
	}
	if failCommit != nil {
		r.inc(&r.RollbackCalls)
		return failCommit
	}
	r.inc(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) inc(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
