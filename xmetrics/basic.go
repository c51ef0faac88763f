package xmetrics

// Adder represents a metrics to which deltas can be added.  Go-kit's metrics.Counter, metrics.Gauge, and
// several prometheus interfaces implement this interface.
type Adder interface {
	Add(float64)
}

// Observer is a type of metric which receives observations.  Histograms and summaries implement this interface.
type Observer interface {
	Observe(float64)
}
