package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/coupler/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coupler"

// Metrics records coupling activity on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	keff         prometheus.Gauge
	sourceRate   prometheus.Gauge
	waits        *prometheus.CounterVec
	waitDuration prometheus.Histogram
	pollAttempts prometheus.Histogram
	continues    prometheus.Counter
	sets         *prometheus.CounterVec
	live         prometheus.Gauge
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Coupled operator steps by outcome.",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of a coupled step.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		keff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keff",
			Help:      "Eigenvalue of the last step.",
		}),
		sourceRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_rate",
			Help:      "Source rate of the last step in particles/s.",
		}),
		waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waits_total",
			Help:      "Suspensions observed by flag and outcome.",
		}, []string{"flag", "outcome"}),
		waitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_duration_seconds",
			Help:      "Time spent polling for a suspension.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_failures",
			Help:      "Failed connection attempts per wait.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),
		continues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "continues_total",
			Help:      "Continue requests sent to the solver.",
		}),
		sets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controllable_sets_total",
			Help:      "Controllable values pushed by kind and outcome.",
		}, []string{"kind", "outcome"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solver_live",
			Help:      "1 while a solver process is attached.",
		}),
	}
	m.registry.MustRegister(
		m.steps, m.stepDuration, m.keff, m.sourceRate,
		m.waits, m.waitDuration, m.pollAttempts,
		m.continues, m.sets, m.live,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Hooks returns callbacks feeding the collectors.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnStart: func(ctx context.Context, e *domain.ControlEvent) {
			if e.Err == nil {
				m.live.Set(1)
			}
		},
		OnStop: func(ctx context.Context, e *domain.ControlEvent) {
			m.live.Set(0)
		},
		OnWait: func(ctx context.Context, e *domain.ControlEvent) {
			m.waits.WithLabelValues(e.Flag.String(), outcome(e.Err)).Inc()
			m.waitDuration.Observe(e.Duration.Seconds())
			m.pollAttempts.Observe(float64(e.Attempts))
		},
		OnContinue: func(ctx context.Context, e *domain.ControlEvent) {
			m.continues.Inc()
		},
		OnSet: func(ctx context.Context, e *domain.ControlEvent) {
			m.sets.WithLabelValues(string(e.Kind), outcome(e.Err)).Inc()
		},
		OnStep: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				m.steps.WithLabelValues("error").Inc()
				return
			}
			label := "solved"
			if e.ShortCircuit {
				label = "short_circuit"
			}
			m.steps.WithLabelValues(label).Inc()
			m.stepDuration.Observe(e.Duration.Seconds())
			m.keff.Set(e.K.Nominal)
			m.sourceRate.Set(e.SourceRate)
		},
	}
}
