package xmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const (
	DefaultNamespace = "xmidt"
	DefaultSubsystem = "semaphore"
)

// Options is the configurable options for creating a Prometheus registry
type Options struct {
	// Logger receives a debug entry for each registered metric.  If unset, sallust.Default() is used.
	Logger *zap.Logger

	// Namespace is the default namespace for metrics which don't define one.
	// If not supplied, DefaultNamespace is used.
	Namespace string

	// Subsystem is the default subsystem for metrics which don't define one.
	// If not supplied, DefaultSubsystem is used.
	Subsystem string

	// Pedantic indicates whether the registry is created via NewPedanticRegistry().  Set
	// to true for testing or development.
	Pedantic bool

	// DisableGoCollector controls whether the Go Collector is registered with the Registry.
	DisableGoCollector bool
}

func (o *Options) logger() *zap.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}

	return sallust.Default()
}

func (o *Options) namespace() string {
	if o != nil && len(o.Namespace) > 0 {
		return o.Namespace
	}

	return DefaultNamespace
}

func (o *Options) subsystem() string {
	if o != nil && len(o.Subsystem) > 0 {
		return o.Subsystem
	}

	return DefaultSubsystem
}

func (o *Options) registry() *prometheus.Registry {
	var pr *prometheus.Registry
	if o != nil && o.Pedantic {
		pr = prometheus.NewPedanticRegistry()
	} else {
		pr = prometheus.NewRegistry()
	}

	if o == nil || !o.DisableGoCollector {
		pr.MustRegister(collectors.NewGoCollector())
	}

	return pr
}
