// Package lock serialises read-modify-write sequences on a named sheet.
//
// A Locker hands out exclusive holds keyed by sheet name. Local works inside
// one process; Redis extends the same guarantee across server replicas that
// share a backing store.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout is returned when a hold could not be obtained before the
// caller's deadline.
var ErrLockTimeout = errors.New("timed out waiting for sheet lock")

// Release gives a hold back. It is safe to call more than once.
type Release func()

// Locker grants exclusive holds on keys.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Local is an in-process Locker. The zero value is not usable; call NewLocal.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // buffered(1); holding the token means holding the lock
	refs int
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *Local) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Held reports how many keys currently have holders or waiters.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
