// Package memtx gives the in-memory stores the same unit-of-work shape as the
// SQL backends. RunInTx serialises writers behind one lock and keeps a journal
// of undo functions that the stores register as they mutate; if the unit of
// work fails or panics, the journal is replayed in reverse. Reads made through
// View wait for the active writer, so they only see committed state.
package memtx

import (
	"context"
	"sync"

	dErrors "compliancehub/pkg/domain-errors"
)

type (
	ctxKey  struct{}
	viewKey struct{}
)

type journal struct {
	undo []func()
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Tx is the in-memory transaction runner. Share one Tx between every memory
// store that participates in the same unit of work.
type Tx struct {
	mu sync.RWMutex
}

func New() *Tx {
	return &Tx{}
}

// RunInTx runs fn while holding the writer lock. A call made from inside an
// active unit of work joins it instead of taking the lock again. RunInTx must
// not be called from inside View.
func (t *Tx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(ctxKey{}).(*journal); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	j := &journal{}
	defer func() {
		if r := recover(); r != nil {
			j.rollback()
			panic(r)
		}
	}()
	if err := fn(context.WithValue(ctx, ctxKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// View runs a read-only fn under the reader lock. Inside a unit of work or an
// enclosing View it runs fn directly.
func (t *Tx) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) || ctx.Value(viewKey{}) != nil {
		return fn(ctx)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(context.WithValue(ctx, viewKey{}, true))
}

// OnRollback registers an undo step for the unit of work carried by ctx.
// Outside a unit of work the write is already final and nothing is recorded.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(ctxKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// InTx reports whether ctx carries an active unit of work.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(ctxKey{}).(*journal)
	return ok
}
