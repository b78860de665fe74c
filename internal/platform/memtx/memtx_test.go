package memtx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTxRollsBackInReverseOrder(t *testing.T) {
	tx := New()
	var order []int
	state := map[string]int{}

	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		state["a"] = 1
		OnRollback(ctx, func() { delete(state, "a"); order = append(order, 1) })
		state["b"] = 2
		OnRollback(ctx, func() { delete(state, "b"); order = append(order, 2) })
		return errors.New("audit write failed")
	})

	require.Error(t, err)
	assert.Empty(t, state)
	assert.Equal(t, []int{2, 1}, order)
}

func TestRunInTxCommitKeepsWrites(t *testing.T) {
	tx := New()
	state := map[string]int{}
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		state["a"] = 1
		OnRollback(ctx, func() { delete(state, "a") })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, state["a"])
}

func TestNestedRunInTxJoinsOuter(t *testing.T) {
	tx := New()
	state := map[string]int{}
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		require.True(t, InTx(ctx))
		inner := tx.RunInTx(ctx, func(innerCtx context.Context) error {
			state["inner"] = 1
			OnRollback(innerCtx, func() { delete(state, "inner") })
			return nil
		})
		require.NoError(t, inner)
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Empty(t, state, "inner writes roll back with the outer unit")
}

func TestOnRollbackOutsideTxIsNoop(t *testing.T) {
	called := false
	OnRollback(context.Background(), func() { called = true })
	assert.False(t, called)
	assert.False(t, InTx(context.Background()))
}

func TestCancelledContextIsRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New().RunInTx(ctx, func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestRunInTxSerialisesWriters(t *testing.T) {
	tx := New()
	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tx.RunInTx(context.Background(), func(context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	tx := New()
	state := map[string]int{}

	assert.PanicsWithValue(t, "boom", func() {
		_ = tx.RunInTx(context.Background(), func(ctx context.Context) error {
			state["a"] = 1
			OnRollback(ctx, func() { delete(state, "a") })
			panic("boom")
		})
	})
	assert.Empty(t, state)

	// The writer lock was released by the panicking unit of work.
	require.NoError(t, tx.RunInTx(context.Background(), func(context.Context) error { return nil }))
}

func TestViewWaitsForTheActiveWriter(t *testing.T) {
	tx := New()
	state := map[string]int{}
	var mu sync.Mutex
	read := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(state)
	}

	written := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- tx.RunInTx(context.Background(), func(ctx context.Context) error {
			mu.Lock()
			state["a"] = 1
			mu.Unlock()
			OnRollback(ctx, func() {
				mu.Lock()
				delete(state, "a")
				mu.Unlock()
			})
			close(written)
			<-release
			return errors.New("audit write failed")
		})
	}()
	<-written

	seen := make(chan int, 1)
	go func() {
		_ = tx.View(context.Background(), func(context.Context) error {
			seen <- read()
			return nil
		})
	}()

	select {
	case n := <-seen:
		t.Fatalf("view ran during an open unit of work and saw %d rows", n)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.Error(t, <-done)
	assert.Equal(t, 0, <-seen, "view sees only the rolled-back state")
}

func TestViewJoinsUnitOfWorkAndNestedViews(t *testing.T) {
	tx := New()
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		return tx.View(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)

	err = tx.View(context.Background(), func(ctx context.Context) error {
		return tx.View(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}
