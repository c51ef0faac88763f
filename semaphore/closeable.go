// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import (
	"errors"
	"io"
)

var (
	// ErrClosed is returned when a semaphore has been closed
	ErrClosed = errors.New("the semaphore has been closed")
)

// Closeable represents a semaphore than can be closed.  Once closed, a semaphore cannot be reopened.
//
// Any goroutines waiting for slots when a Closeable is closed will receive ErrClosed from Acquire.
// Subsequent acquisitions also fail.  Release handles issued before the close remain valid and still
// return their slots, so Count() recovers as holders finish.
type Closeable interface {
	io.Closer
	Interface

	// Closed returns a channel that is closed when this semaphore has been closed.
	// This channel has similar use cases to context.Done().
	Closed() <-chan struct{}
}

// Close fails every queued acquisition with ErrClosed.  A second call returns ErrClosed.
func (s *Semaphore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.isClosed {
		return ErrClosed
	}

	s.isClosed = true
	close(s.closed)
	for s.waiters.Len() > 0 {
		s.waiters.PopFront().fail(ErrClosed)
	}

	return nil
}

func (s *Semaphore) Closed() <-chan struct{} {
	return s.closed
}
