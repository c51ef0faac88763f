package xmetrics

import (
	"fmt"

	"github.com/go-kit/kit/metrics"
	gokitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-kit/kit/metrics/provider"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Registry is a Prometheus registry and a go-kit metrics provider all in one.
//
// For a metric that was preregistered through a Module, the provider methods return a go-kit wrapper
// around it.  Any other name produces an ad hoc metric that is cached and returned by subsequent calls.
type Registry interface {
	provider.Provider
	prometheus.Gatherer
	prometheus.Registerer
}

type registry struct {
	*prometheus.Registry

	logger    *zap.Logger
	namespace string
	subsystem string
	cache     map[string]prometheus.Collector
}

// NewRegistry creates a Registry and preregisters every metric supplied by the modules.  Duplicate names
// are an error.
func NewRegistry(o *Options, modules ...Module) (Registry, error) {
	r := &registry{
		Registry:  o.registry(),
		logger:    o.logger(),
		namespace: o.namespace(),
		subsystem: o.subsystem(),
		cache:     make(map[string]prometheus.Collector),
	}

	for _, m := range modules {
		for _, metric := range m() {
			if _, ok := r.cache[metric.Name]; ok {
				return nil, fmt.Errorf("duplicate metric %s", metric.Name)
			}

			if _, err := r.register(metric); err != nil {
				return nil, fmt.Errorf("error while preregistering metric %s: %w", metric.Name, err)
			}
		}
	}

	return r, nil
}

func (r *registry) register(m Metric) (prometheus.Collector, error) {
	c, err := NewCollector(m, r.namespace, r.subsystem)
	if err != nil {
		return nil, err
	}

	if err := r.Registry.Register(c); err != nil {
		return nil, err
	}

	r.logger.Debug("registered metric", zap.String("name", m.Name), zap.String("type", m.Type))
	r.cache[m.Name] = c
	return c, nil
}

// collector returns the cached collector for name, creating an ad hoc metric of type t if necessary.
func (r *registry) collector(name, t string) prometheus.Collector {
	if existing, ok := r.cache[name]; ok {
		return existing
	}

	c, err := r.register(Metric{Name: name, Type: t})
	if err != nil {
		panic(err)
	}

	return c
}

func (r *registry) NewCounter(name string) metrics.Counter {
	vec, ok := r.collector(name, CounterType).(*prometheus.CounterVec)
	if !ok {
		panic(fmt.Errorf("the metric %s is not a counter", name))
	}

	return gokitprometheus.NewCounter(vec)
}

func (r *registry) NewGauge(name string) metrics.Gauge {
	vec, ok := r.collector(name, GaugeType).(*prometheus.GaugeVec)
	if !ok {
		panic(fmt.Errorf("the metric %s is not a gauge", name))
	}

	return gokitprometheus.NewGauge(vec)
}

func (r *registry) NewHistogram(name string, _ int) metrics.Histogram {
	vec, ok := r.collector(name, HistogramType).(*prometheus.HistogramVec)
	if !ok {
		panic(fmt.Errorf("the metric %s is not a histogram", name))
	}

	return gokitprometheus.NewHistogram(vec)
}

func (r *registry) Stop() {
}
