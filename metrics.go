package uvw

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/sledgeh/uvw/internal/native"
)

// Metrics is a snapshot of a loop's counters.
type Metrics = native.Metrics

// loopMetrics exports a loop's counters to prometheus. A nil *loopMetrics
// is valid, and does nothing.
type loopMetrics struct {
	registerer prometheus.Registerer
	collectors []prometheus.Collector
	errors     *prometheus.CounterVec
}

func newLoopMetrics(reg prometheus.Registerer, loopID string, n *native.Loop) (*loopMetrics, error) {
	labels := prometheus.Labels{`loop`: loopID}
	counter := func(name, help string, value func(s native.Metrics) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   `uvw`,
			Subsystem:   `loop`,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(value(n.Metrics())) })
	}
	gauge := func(name, help string, value func(s native.Metrics) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   `uvw`,
			Subsystem:   `loop`,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(value(n.Metrics())) })
	}

	m := &loopMetrics{
		registerer: reg,
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   `uvw`,
			Subsystem:   `handle`,
			Name:        `errors_total`,
			Help:        `Number of error events published by handles, by status code.`,
			ConstLabels: labels,
		}, []string{`errno`}),
	}

	collectors := []prometheus.Collector{
		counter(`iterations_total`, `Number of loop iterations.`, func(s native.Metrics) uint64 { return s.Iterations }),
		counter(`timers_fired_total`, `Number of timer callbacks invoked.`, func(s native.Metrics) uint64 { return s.TimersFired }),
		counter(`tasks_total`, `Number of submitted tasks run.`, func(s native.Metrics) uint64 { return s.TasksRun }),
		gauge(`handles`, `Number of handles not yet fully closed.`, func(s native.Metrics) int64 { return s.Handles }),
		gauge(`active_handles`, `Number of active, referenced handles.`, func(s native.Metrics) int64 { return s.ActiveHandles }),
		m.errors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			m.unregister()
			return nil, fmt.Errorf("uvw: register metrics: %w", err)
		}
		m.collectors = append(m.collectors, c)
	}
	return m, nil
}

func (m *loopMetrics) handleError(code native.Errno) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code.Name()).Inc()
}

func (m *loopMetrics) unregister() error {
	if m == nil {
		return nil
	}
	var err error
	for _, c := range m.collectors {
		if !m.registerer.Unregister(c) {
			err = multierr.Append(err, fmt.Errorf("uvw: unregister metrics: %T not registered", c))
		}
	}
	m.collectors = nil
	return err
}
