// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ModeAcquire has each task acquire a release handle and invoke it when done.
	ModeAcquire = "acquire"

	// ModeUse has each task run inside Use.
	ModeUse = "use"

	// ModeMutex is ModeAcquire against a mutex.  Capacity is ignored.
	ModeMutex = "mutex"
)

var (
	ErrInvalidMode  = errors.New("invalid load test mode")
	ErrInvalidTasks = errors.New("the number of tasks cannot be negative")
)

// Options describes a single load test run.
type Options struct {
	// Capacity is the semaphore capacity.
	Capacity int `mapstructure:"capacity"`

	// Tasks is the number of concurrent tasks started.
	Tasks int `mapstructure:"tasks"`

	// Hold is how long each task keeps its slot.
	Hold time.Duration `mapstructure:"hold"`

	// Timeout is the semaphore's queued acquisition timeout.  Zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`

	// Overflow lets timed out tasks proceed without a slot.
	Overflow bool `mapstructure:"overflow"`

	// Mode is one of the Mode constants.  If unset, ModeAcquire is used.
	Mode string `mapstructure:"mode"`

	// Deadline bounds the whole run.  Tasks still queued when it elapses fail.  Zero means no deadline.
	Deadline time.Duration `mapstructure:"deadline"`
}

func (o Options) mode() string {
	if len(o.Mode) > 0 {
		return o.Mode
	}

	return ModeAcquire
}

func (o Options) validate() error {
	switch o.mode() {
	case ModeAcquire, ModeUse, ModeMutex:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMode, o.Mode)
	}

	if o.Tasks < 0 {
		return ErrInvalidTasks
	}

	return nil
}
