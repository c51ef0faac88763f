// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import (
	"context"
	"errors"
	"sync"

	"github.com/go-kit/kit/metrics/discard"
	"github.com/xmidt-org/semaphore/clock"
	"github.com/xmidt-org/semaphore/xmetrics"
)

// InstrumentOption represents a configurable option for instrumenting a semaphore
type InstrumentOption func(*instrumentedSemaphore)

// WithResources establishes a metric that tracks the number of outstanding release handles.
// If a nil metric is supplied, resource counts are discarded.
func WithResources(a xmetrics.Adder) InstrumentOption {
	return func(i *instrumentedSemaphore) {
		if a != nil {
			i.resources = a
		} else {
			i.resources = discard.NewGauge()
		}
	}
}

// WithErrors establishes a metric that tracks how many errors, or failed resource acquisitions,
// happen when attempting to acquire resources.  If a nil counter is supplied, error counts
// are discarded.
func WithErrors(a xmetrics.Adder) InstrumentOption {
	return func(i *instrumentedSemaphore) {
		if a != nil {
			i.errors = a
		} else {
			i.errors = discard.NewCounter()
		}
	}
}

// WithTimeouts establishes a metric that counts acquisitions failing with ErrTimeout.  These are
// also counted by WithErrors.
func WithTimeouts(a xmetrics.Adder) InstrumentOption {
	return func(i *instrumentedSemaphore) {
		if a != nil {
			i.timeouts = a
		} else {
			i.timeouts = discard.NewCounter()
		}
	}
}

// WithWaits establishes a metric that observes, in seconds, how long each call to Acquire took.
func WithWaits(o xmetrics.Observer) InstrumentOption {
	return func(i *instrumentedSemaphore) {
		if o != nil {
			i.waits = o
		} else {
			i.waits = discard.NewHistogram()
		}
	}
}

// WithInstrumentClock sets the clock used to measure waits.  If nil, clock.System() is used.
func WithInstrumentClock(c clock.Interface) InstrumentOption {
	return func(i *instrumentedSemaphore) {
		if c != nil {
			i.clock = c
		} else {
			i.clock = clock.System()
		}
	}
}

// Instrument decorates an existing semaphore with a set of options.
func Instrument(s Interface, o ...InstrumentOption) Interface {
	is := &instrumentedSemaphore{
		Interface: s,
		resources: discard.NewGauge(),
		errors:    discard.NewCounter(),
		timeouts:  discard.NewCounter(),
		waits:     discard.NewHistogram(),
		clock:     clock.System(),
	}

	for _, f := range o {
		f(is)
	}

	return is
}

type instrumentedSemaphore struct {
	Interface
	resources xmetrics.Adder
	errors    xmetrics.Adder
	timeouts  xmetrics.Adder
	waits     xmetrics.Observer
	clock     clock.Interface
}

func (is *instrumentedSemaphore) Acquire(ctx context.Context) (Release, error) {
	start := is.clock.Now()
	r, err := is.Interface.Acquire(ctx)
	is.waits.Observe(clock.Since(is.clock, start).Seconds())
	if err != nil {
		is.errors.Add(1.0)
		if errors.Is(err, ErrTimeout) {
			is.timeouts.Add(1.0)
		}

		return nil, err
	}

	return is.track(r), nil
}

func (is *instrumentedSemaphore) TryAcquire() (Release, bool) {
	r, ok := is.Interface.TryAcquire()
	if !ok {
		return nil, false
	}

	return is.track(r), true
}

func (is *instrumentedSemaphore) Use(ctx context.Context, task func(context.Context) error) error {
	return use(ctx, is, task)
}

func (is *instrumentedSemaphore) track(r Release) Release {
	is.resources.Add(1.0)

	var once sync.Once
	return func() {
		once.Do(func() {
			r()
			is.resources.Add(-1.0)
		})
	}
}
