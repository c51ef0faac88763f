// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package conlimiter provides a simple connection limiter for incoming TCP
// connections, backed by a semaphore
package conlimiter

import (
	"net"
	"net/http"
	"sync"

	"github.com/xmidt-org/semaphore/semaphore"
)

// ConLimiter limits the number of outstanding TCP connections coming into
// a HTTP server.  Each connection holds one slot of a semaphore from the time it is
// accepted until it is closed or hijacked.  Connections that find no free slot are closed.
type ConLimiter struct {
	s semaphore.Interface

	lock     sync.Mutex
	releases map[net.Conn]semaphore.Release
}

// New creates a ConLimiter that allows at most max concurrent connections.
func New(max int) (*ConLimiter, error) {
	s, err := semaphore.New(max)
	if err != nil {
		return nil, err
	}

	return NewWithSemaphore(s), nil
}

// NewWithSemaphore creates a ConLimiter over an existing semaphore, e.g. an instrumented one.
func NewWithSemaphore(s semaphore.Interface) *ConLimiter {
	return &ConLimiter{
		s:        s,
		releases: make(map[net.Conn]semaphore.Release),
	}
}

// Limit installs the limiter as the server's ConnState hook
func (l *ConLimiter) Limit(s *http.Server) {
	s.ConnState = l.connState
}

// Active returns the number of connections currently holding a slot
func (l *ConLimiter) Active() int {
	return l.s.Capacity() - l.s.Count()
}

func (l *ConLimiter) connState(c net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		release, ok := l.s.TryAcquire()
		if !ok {
			c.Close()
			return
		}

		l.lock.Lock()
		l.releases[c] = release
		l.lock.Unlock()

	case http.StateHijacked, http.StateClosed:
		l.lock.Lock()
		release, ok := l.releases[c]
		delete(l.releases, c)
		l.lock.Unlock()

		if ok {
			release()
		}
	}
}
