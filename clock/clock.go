// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Interface is the source of time used by the semaphore package and the load driver.  It stands in for
// the host's timer and delay facilities so that tests can control when deadlines fire.
type Interface interface {
	Now() time.Time
	Sleep(time.Duration)
	NewTimer(time.Duration) Timer
}

type systemClock struct{}

func (sc systemClock) Now() time.Time {
	return time.Now()
}

func (sc systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (sc systemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

// System returns a clock backed by the time package
func System() Interface {
	return systemClock{}
}

// Since returns the time elapsed since t according to the given clock.  A nil clock
// is treated as System().
func Since(c Interface, t time.Time) time.Duration {
	if c == nil {
		c = System()
	}

	return c.Now().Sub(t)
}
