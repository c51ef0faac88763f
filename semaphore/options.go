// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import (
	"time"

	"github.com/xmidt-org/semaphore/clock"
)

// Option is a configurable option for a semaphore
type Option func(*Semaphore)

// WithTimeout sets how long a queued acquisition waits for a slot.  The timeout applies to every
// acquisition that has to queue; acquisitions that find a free slot never wait.  A nonpositive
// duration disables the timeout, which is the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Semaphore) {
		if d > 0 {
			s.timeout = d
		} else {
			s.timeout = 0
		}
	}
}

// WithClock sets the clock used to create timeout timers.  If nil, clock.System() is used.
func WithClock(c clock.Interface) Option {
	return func(s *Semaphore) {
		if c != nil {
			s.clock = c
		} else {
			s.clock = clock.System()
		}
	}
}

// WithOverflow changes what happens when a queued acquisition times out.  Instead of failing with
// ErrTimeout, the waiter leaves the queue and proceeds with a Release that owns no slot.  Invoking
// that Release does nothing.  With this option, more than Capacity() callers can hold the semaphore at once.
func WithOverflow() Option {
	return func(s *Semaphore) {
		s.overflow = true
	}
}
