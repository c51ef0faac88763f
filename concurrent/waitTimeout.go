// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package concurrent

import (
	"sync"
	"time"

	"github.com/xmidt-org/semaphore/clock"
)

// WaitTimeout performs a timed wait on a given sync.WaitGroup, using the supplied clock for the
// deadline.  A nil clock is treated as clock.System().  This function returns true if Wait() returned
// before the timeout elapsed.
func WaitTimeout(c clock.Interface, waitGroup *sync.WaitGroup, timeout time.Duration) bool {
	if c == nil {
		c = clock.System()
	}

	success := make(chan struct{})
	go func() {
		defer close(success)
		waitGroup.Wait()
	}()

	timer := c.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-success:
		return true
	case <-timer.C():
		return false
	}
}
