// Package locking provides mutual exclusion keyed by resource id.
package locking

import (
	"context"
	"errors"
	"time"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

type Locker interface {
	// Lock blocks until key is held or ctx ends. Holders of different keys
	// never block each other.
	Lock(ctx context.Context, key string) (Unlock, error)
}

func SlotKey(slotID string) string {
	return "slot:" + slotID
}

func CalendarKey(calendarID string) string {
	return "calendar:" + calendarID
}

// Noop grants every lock immediately. Used when the store itself serializes
// writers, e.g. with row locks taken inside the transaction.
type Noop struct{}

func (Noop) Lock(context.Context, string) (Unlock, error) {
	return func() {}, nil
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, wait)
}
