package memory

import (
	"context"
	"sort"
)

// Table is a keyed row set bound to a DB. Rows are copied in and out
// through clone so callers never share memory with the store.
type Table[T any] struct {
	db    *DB
	rows  map[string]T
	clone func(T) T
}

func NewTable[T any](d *DB, clone func(T) T) *Table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Table[T]{
		db:    d,
		rows:  make(map[string]T),
		clone: clone,
	}
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var (
		out   T
		found bool
	)
	err := t.db.run(ctx, func(*txState) {
		var row T
		row, found = t.rows[id]
		if found {
			out = t.clone(row)
		}
	})
	return out, found, err
}

// Insert fails with ErrDuplicate when id is already present.
func (t *Table[T]) Insert(ctx context.Context, id string, v T) error {
	var dup bool
	err := t.db.run(ctx, func(tx *txState) {
		if _, dup = t.rows[id]; dup {
			return
		}
		t.rows[id] = t.clone(v)
		if tx != nil {
			tx.undo = append(tx.undo, func() { delete(t.rows, id) })
		}
	})
	if err != nil {
		return err
	}
	if dup {
		return ErrDuplicate
	}
	return nil
}

// Replace overwrites an existing row. It reports false when id is absent.
func (t *Table[T]) Replace(ctx context.Context, id string, v T) (bool, error) {
	var found bool
	err := t.db.run(ctx, func(tx *txState) {
		var prev T
		if prev, found = t.rows[id]; !found {
			return
		}
		t.rows[id] = t.clone(v)
		if tx != nil {
			tx.undo = append(tx.undo, func() { t.rows[id] = prev })
		}
	})
	return found, err
}

func (t *Table[T]) Delete(ctx context.Context, id string) (bool, error) {
	var found bool
	err := t.db.run(ctx, func(tx *txState) {
		var prev T
		if prev, found = t.rows[id]; !found {
			return
		}
		delete(t.rows, id)
		if tx != nil {
			tx.undo = append(tx.undo, func() { t.rows[id] = prev })
		}
	})
	return found, err
}

// Select returns copies of every row matching keep, ordered by less when given.
func (t *Table[T]) Select(ctx context.Context, keep func(T) bool, less func(a, b T) bool) ([]T, error) {
	var out []T
	err := t.db.run(ctx, func(*txState) {
		for _, row := range t.rows {
			if keep == nil || keep(row) {
				out = append(out, t.clone(row))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if less != nil {
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out, nil
}

// Any reports whether at least one row matches.
func (t *Table[T]) Any(ctx context.Context, match func(T) bool) (bool, error) {
	var found bool
	err := t.db.run(ctx, func(*txState) {
		for _, row := range t.rows {
			if match(row) {
				found = true
				return
			}
		}
	})
	return found, err
}
