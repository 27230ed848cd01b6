/*package metrics holds the Prometheus collectors for the step controller.*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase names used as label values.
const (
	PhaseWrite      = "write"
	PhaseExternal   = "external"
	PhaseRead       = "read"
	PhaseReallocate = "reallocate"
)

// Metrics holds all controller metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Steps         *prometheus.CounterVec
	Reallocations prometheus.Counter
	PhaseDuration *prometheus.HistogramVec
	MappedBytes   prometheus.Gauge
	Particles     prometheus.Gauge
}

// New creates and registers the controller metrics.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hoomdtf_steps_total",
				Help: "Total number of steps handed to the engine",
			},
			[]string{"status"},
		),
		Reallocations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hoomdtf_reallocations_total",
				Help: "Total number of times the shared regions were reallocated",
			},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hoomdtf_phase_duration_seconds",
				Help:    "Duration of each step phase",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12), // 1us to ~4s
			},
			[]string{"phase"},
		),
		MappedBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hoomdtf_mapped_bytes",
				Help: "Bytes currently mapped for shared regions",
			},
		),
		Particles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hoomdtf_particles",
				Help: "Particle count the regions are sized for",
			},
		),
	}
}

// ObservePhase records how long a phase took since t0.
func (m *Metrics) ObservePhase(phase string, t0 time.Time) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(time.Since(t0).Seconds())
}

// IncSteps counts a finished step; status is "ok" or "error".
func (m *Metrics) IncSteps(status string) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(status).Inc()
}

// Reallocated records a reallocation to n particles and the new mapped size.
func (m *Metrics) Reallocated(n, mappedBytes int) {
	if m == nil {
		return
	}
	m.Reallocations.Inc()
	m.Particles.Set(float64(n))
	m.MappedBytes.Set(float64(mappedBytes))
}
