package locking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu          sync.Mutex
	entries     map[string]*keyedEntry
	waitTimeout time.Duration
}

// NewKeyedMutex returns a KeyedMutex. A zero waitTimeout waits until ctx ends.
func NewKeyedMutex(waitTimeout time.Duration) *KeyedMutex {
	return &KeyedMutex{
		entries:     make(map[string]*keyedEntry),
		waitTimeout: waitTimeout,
	}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (Unlock, error) {
	e := m.ref(key)

	waitCtx, cancel := withWait(ctx, m.waitTimeout)
	defer cancel()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				m.unref(key, e)
			})
		}, nil
	case <-waitCtx.Done():
		m.unref(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, waitCtx.Err())
	}
}

// Len is the number of keys currently held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *KeyedMutex) ref(key string) *keyedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *KeyedMutex) unref(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
