// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/metrics/provider"
	"github.com/segmentio/ksuid"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/semaphore/clock"
	"github.com/xmidt-org/semaphore/concurrent"
	"github.com/xmidt-org/semaphore/semaphore"
	"go.uber.org/zap"
)

// ErrDeadline is returned by Run when the tasks did not finish within Options.Deadline.
var ErrDeadline = errors.New("the load test did not finish before its deadline")

// Report summarizes a run.
type Report struct {
	Mode       string
	Capacity   int
	Tasks      int
	Completed  int
	TimedOut   int
	Failed     int
	Peak       int
	FinalCount int
	Elapsed    time.Duration
}

// Exceeded reports whether more tasks held the semaphore at once than its capacity allows.
func (r Report) Exceeded() bool {
	return r.Peak > r.Capacity
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLogger sets the logger for the runner.  If nil, sallust.Default() is used.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		} else {
			r.logger = sallust.Default()
		}
	}
}

// WithClock sets the clock used for holding slots and for the overall deadline.
func WithClock(c clock.Interface) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		} else {
			r.clock = clock.System()
		}
	}
}

// WithProvider instruments the semaphore under test with metrics from the given go-kit provider.
func WithProvider(p provider.Provider) RunnerOption {
	return func(r *Runner) {
		if p != nil {
			r.instrument = semaphore.NewInstrumentOptions(p)
		} else {
			r.instrument = nil
		}
	}
}

// Runner executes load tests
type Runner struct {
	options    Options
	logger     *zap.Logger
	clock      clock.Interface
	instrument []semaphore.InstrumentOption
}

// New validates the options and creates a Runner.
func New(o Options, ro ...RunnerOption) (*Runner, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		options: o,
		logger:  sallust.Default(),
		clock:   clock.System(),
	}

	for _, f := range ro {
		f(r)
	}

	return r, nil
}

func (r *Runner) newSemaphore() (*semaphore.Semaphore, error) {
	o := []semaphore.Option{
		semaphore.WithTimeout(r.options.Timeout),
		semaphore.WithClock(r.clock),
	}

	if r.options.Overflow {
		o = append(o, semaphore.WithOverflow())
	}

	if r.options.mode() == ModeMutex {
		return semaphore.Mutex(o...), nil
	}

	s, err := semaphore.New(r.options.Capacity, o...)
	if err != nil {
		return nil, fmt.Errorf("unable to create semaphore with capacity %d: %w", r.options.Capacity, err)
	}

	return s, nil
}

// tracker records how many tasks are inside their critical section
type tracker struct {
	lock    sync.Mutex
	running int
	report  Report
}

func (t *tracker) enter() {
	t.lock.Lock()
	t.running++
	if t.running > t.report.Peak {
		t.report.Peak = t.running
	}
	t.lock.Unlock()
}

func (t *tracker) leave() {
	t.lock.Lock()
	t.running--
	t.report.Completed++
	t.lock.Unlock()
}

func (t *tracker) fail(err error) {
	t.lock.Lock()
	if errors.Is(err, semaphore.ErrTimeout) {
		t.report.TimedOut++
	} else {
		t.report.Failed++
	}
	t.lock.Unlock()
}

func (t *tracker) snapshot() Report {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.report
}

// Run starts all tasks and waits for them to settle.  When the deadline passes, queued tasks are
// failed with semaphore.ErrClosed and Run still waits for current holders to finish their hold.
// The returned Report is valid even when ErrDeadline is returned.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	s, err := r.newSemaphore()
	if err != nil {
		return Report{}, err
	}

	var (
		target = semaphore.Instrument(s, r.instrument...)
		t      = &tracker{
			report: Report{
				Mode:     r.options.mode(),
				Capacity: s.Capacity(),
				Tasks:    r.options.Tasks,
			},
		}

		wg    = new(sync.WaitGroup)
		start = r.clock.Now()
	)

	r.logger.Info(
		"starting load test",
		zap.String("mode", r.options.mode()),
		zap.Int("capacity", s.Capacity()),
		zap.Int("tasks", r.options.Tasks),
		zap.Duration("hold", r.options.Hold),
		zap.Duration("timeout", r.options.Timeout),
		zap.Bool("overflow", r.options.Overflow),
	)

	wg.Add(r.options.Tasks)
	for i := 0; i < r.options.Tasks; i++ {
		go r.task(ctx, wg, target, t, ksuid.New().String())
	}

	if r.options.Deadline > 0 && !concurrent.WaitTimeout(r.clock, wg, r.options.Deadline) {
		// fail anything still queued so the remaining goroutines can finish
		s.Close()
		r.logger.Error("load test deadline exceeded", zap.Duration("deadline", r.options.Deadline))
		wg.Wait()

		report := t.snapshot()
		report.Elapsed = clock.Since(r.clock, start)
		report.FinalCount = s.Count()
		return report, ErrDeadline
	}

	wg.Wait()
	report := t.snapshot()
	report.Elapsed = clock.Since(r.clock, start)
	report.FinalCount = s.Count()

	r.logger.Info(
		"load test complete",
		zap.Int("completed", report.Completed),
		zap.Int("timedOut", report.TimedOut),
		zap.Int("failed", report.Failed),
		zap.Int("peak", report.Peak),
		zap.Int("finalCount", report.FinalCount),
		zap.Duration("elapsed", report.Elapsed),
	)

	return report, nil
}

func (r *Runner) task(ctx context.Context, wg *sync.WaitGroup, s semaphore.Interface, t *tracker, id string) {
	defer wg.Done()
	logger := r.logger.With(zap.String("task", id))

	hold := func(context.Context) error {
		t.enter()
		logger.Debug("holding semaphore")
		r.clock.Sleep(r.options.Hold)
		t.leave()
		return nil
	}

	var err error
	if r.options.mode() == ModeUse {
		err = s.Use(ctx, hold)
	} else {
		var release semaphore.Release
		if release, err = s.Acquire(ctx); err == nil {
			hold(ctx)
			release()
		}
	}

	if err != nil {
		logger.Info("task did not acquire the semaphore", zap.Error(err))
		t.fail(err)
	}
}
