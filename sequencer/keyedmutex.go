package sequencer

import (
	"context"
	"sync"
)

// keyedMutex hands out one lock per key, dropping keys nobody holds or waits for
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) ref(key string) *refMutex {
	m, found := k.locks[key]
	if !found {
		m = &refMutex{ch: make(chan struct{}, 1)}
		k.locks[key] = m
	}
	m.refs++
	return m
}

func (k *keyedMutex) unref(key string, m *refMutex) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
}

// lock waits for the key until ctx is done
func (k *keyedMutex) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	m := k.ref(key)
	k.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, m)
		return nil, ctx.Err()
	}
	return func() {
		<-m.ch
		k.unref(key, m)
	}, nil
}

// tryLock takes the key only if it is free
func (k *keyedMutex) tryLock(key string) (func(), bool) {
	k.mu.Lock()
	m := k.ref(key)
	k.mu.Unlock()

	select {
	case m.ch <- struct{}{}:
	default:
		k.unref(key, m)
		return nil, false
	}
	return func() {
		<-m.ch
		k.unref(key, m)
	}, true
}
