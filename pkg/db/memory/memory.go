// Package memory is the embedded storage backend. A store-wide latch gives
// transactions serializable isolation; an undo log gives them atomicity.
package memory

import (
	"context"
	"errors"

	"minidoodle/pkg/db"
)

var ErrDuplicate = errors.New("memory: duplicate key")

type txKey struct{}

type txState struct {
	undo []func()
}

func (t *txState) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

type DB struct {
	latch chan struct{}
}

func New() *DB {
	return &DB{latch: make(chan struct{}, 1)}
}

// ExecuteTransaction holds the latch for the whole of fn. Nested calls join
// the enclosing transaction. Any error or panic from fn rolls back every
// write made through ctx.
func (d *DB) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()

	tx := &txState{}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.rollback()
	}
	return err
}

func (d *DB) Ping(context.Context) error {
	return nil
}

// run executes a single operation atomically, reusing the latch when ctx is
// already inside a transaction.
func (d *DB) run(ctx context.Context, fn func(tx *txState)) error {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		fn(tx)
		return nil
	}
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()
	fn(nil)
	return nil
}

func (d *DB) acquire(ctx context.Context) error {
	select {
	case d.latch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DB) release() {
	<-d.latch
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}
