// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/xmidt-org/semaphore/clock"
)

var (
	// ErrInvalidCapacity is returned when a semaphore is constructed with a nonpositive capacity.
	ErrInvalidCapacity = errors.New("the semaphore capacity must be positive")

	// ErrTimeout is returned when a queued acquisition is not granted within the configured timeout.
	// This error does not apply when a context ends first.  ctx.Err() is returned in that case.
	ErrTimeout = errors.New("the semaphore could not be acquired within the timeout")
)

// Release returns a slot to the semaphore that issued it.  Only the first invocation has any effect.
type Release func()

// Interface represents a semaphore, either binary or counting.  When an acquire method is successful,
// the returned Release *must* be invoked to return the slot to the semaphore.
type Interface interface {
	// Acquire obtains a slot, waiting in FIFO order behind earlier callers if none is free.  The wait ends
	// early with ctx.Err() when the context ends, or with ErrTimeout when the semaphore has a timeout.
	Acquire(context.Context) (Release, error)

	// TryAcquire obtains a slot only if one is free right now.
	TryAcquire() (Release, bool)

	// Use runs task while holding a slot.  The slot is released exactly once however task exits, and
	// the error returned by task is returned unchanged.
	Use(context.Context, func(context.Context) error) error

	// Count is the number of free slots.  It is meant for diagnostics only.
	Count() int

	// Capacity is the fixed number of slots.
	Capacity() int

	// Waiting is the number of queued acquisitions.
	Waiting() int
}

// waiter is a queued acquisition.  Its fields are written under the semaphore's lock
// by whichever party removes it from the queue.
type waiter struct {
	ready   chan struct{}
	release Release
	err     error
}

func (w *waiter) grant(r Release) {
	w.release = r
	close(w.ready)
}

func (w *waiter) fail(err error) {
	w.err = err
	close(w.ready)
}

// Semaphore is the counting semaphore.  The zero value is not usable; create instances with New, MustNew,
// or Mutex.
type Semaphore struct {
	capacity int
	timeout  time.Duration
	overflow bool
	clock    clock.Interface

	lock      sync.Mutex
	available int
	waiters   deque.Deque[*waiter]
	isClosed  bool
	closed    chan struct{}
}

var _ Closeable = (*Semaphore)(nil)

// New constructs a semaphore with the given capacity.  A nonpositive capacity results in ErrInvalidCapacity.
func New(capacity int, o ...Option) (*Semaphore, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	s := &Semaphore{
		capacity:  capacity,
		clock:     clock.System(),
		available: capacity,
		closed:    make(chan struct{}),
	}

	for _, f := range o {
		f(s)
	}

	return s, nil
}

// MustNew is like New, but panics if the capacity is invalid.
func MustNew(capacity int, o ...Option) *Semaphore {
	s, err := New(capacity, o...)
	if err != nil {
		panic(err)
	}

	return s
}

// Mutex is just syntactic sugar for MustNew(1).  The returned object is a binary semaphore.
func Mutex(o ...Option) *Semaphore {
	return MustNew(1, o...)
}

func (s *Semaphore) Capacity() int {
	return s.capacity
}

func (s *Semaphore) Count() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.available
}

func (s *Semaphore) Waiting() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.waiters.Len()
}

func (s *Semaphore) Acquire(ctx context.Context) (Release, error) {
	s.lock.Lock()
	if s.isClosed {
		s.lock.Unlock()
		return nil, ErrClosed
	}

	if err := ctx.Err(); err != nil {
		s.lock.Unlock()
		return nil, err
	}

	if s.available > 0 {
		s.available--
		s.lock.Unlock()
		return s.newRelease(), nil
	}

	var timer clock.Timer
	if s.timeout > 0 {
		timer = s.clock.NewTimer(s.timeout)
	}

	w := &waiter{ready: make(chan struct{})}
	s.waiters.PushBack(w)
	s.lock.Unlock()

	return s.wait(ctx, w, timer)
}

func (s *Semaphore) TryAcquire() (Release, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.isClosed || s.available < 1 {
		return nil, false
	}

	s.available--
	return s.newRelease(), true
}

func (s *Semaphore) Use(ctx context.Context, task func(context.Context) error) error {
	return use(ctx, s, task)
}

// wait blocks until w is resolved by a grant or Close, or until the caller gives up.
// A nil timer means the wait has no deadline.
func (s *Semaphore) wait(ctx context.Context, w *waiter, timer clock.Timer) (Release, error) {
	var expired <-chan time.Time
	if timer != nil {
		defer timer.Stop()
		expired = timer.C()
	}

	select {
	case <-w.ready:
		return w.release, w.err

	case <-expired:
		s.lock.Lock()
		defer s.lock.Unlock()
		if !s.remove(w) {
			return w.release, w.err
		}

		if s.overflow {
			return func() {}, nil
		}

		return nil, ErrTimeout

	case <-ctx.Done():
		s.lock.Lock()
		defer s.lock.Unlock()
		if !s.remove(w) {
			return w.release, w.err
		}

		return nil, ctx.Err()
	}
}

// remove takes w out of the queue.  It returns false if w was already resolved.
// The lock must be held.
func (s *Semaphore) remove(w *waiter) bool {
	i := s.waiters.Index(func(c *waiter) bool { return c == w })
	if i < 0 {
		return false
	}

	s.waiters.Remove(i)
	return true
}

func (s *Semaphore) newRelease() Release {
	var once sync.Once
	return func() {
		once.Do(s.release)
	}
}

// release passes the slot to the oldest waiter, or returns it to the pool when nobody is waiting.
func (s *Semaphore) release() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.waiters.Len() > 0 {
		s.waiters.PopFront().grant(s.newRelease())
		return
	}

	if s.available < s.capacity {
		s.available++
	}
}
