// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package semaphore

import (
	"github.com/go-kit/kit/metrics/provider"
	"github.com/xmidt-org/semaphore/xmetrics"
)

const (
	ResourcesGauge = "semaphore_resources"
	ErrorCounter   = "semaphore_acquire_errors"
	TimeoutCounter = "semaphore_acquire_timeouts"
	WaitHistogram  = "semaphore_acquire_wait_seconds"
)

// Metrics is the xmetrics module for instrumented semaphores
func Metrics() []xmetrics.Metric {
	return []xmetrics.Metric{
		{
			Name: ResourcesGauge,
			Type: xmetrics.GaugeType,
			Help: "The number of release handles currently outstanding",
		},
		{
			Name: ErrorCounter,
			Type: xmetrics.CounterType,
			Help: "The number of failed acquisitions",
		},
		{
			Name: TimeoutCounter,
			Type: xmetrics.CounterType,
			Help: "The number of acquisitions that timed out while queued",
		},
		{
			Name:    WaitHistogram,
			Type:    xmetrics.HistogramType,
			Help:    "The time spent in Acquire, in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	}
}

// NewInstrumentOptions creates the instrument options for the metrics in Metrics() using a go-kit provider.
func NewInstrumentOptions(p provider.Provider) []InstrumentOption {
	return []InstrumentOption{
		WithResources(p.NewGauge(ResourcesGauge)),
		WithErrors(p.NewCounter(ErrorCounter)),
		WithTimeouts(p.NewCounter(TimeoutCounter)),
		WithWaits(p.NewHistogram(WaitHistogram, 0)),
	}
}
