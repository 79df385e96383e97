package observability

import (
	"sync"
	"time"

	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by the event bus.
type Metrics struct {
	Events          *prometheus.CounterVec
	GuidesStarted   prometheus.Counter
	GuidesCompleted prometheus.Counter
	GuidesSkipped   prometheus.Counter
	StepErrors      *prometheus.CounterVec
	StepDuration    *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]time.Time // guide/step -> stepExecuting time
}

// NewMetrics creates the collectors and registers them with reg (nil skips registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfinder_events_total",
				Help: "Total number of events published, by type",
			},
			[]string{"type"},
		),
		GuidesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wayfinder_guides_started_total",
			Help: "Total number of guides started",
		}),
		GuidesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wayfinder_guides_completed_total",
			Help: "Total number of guides completed",
		}),
		GuidesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wayfinder_guides_skipped_total",
			Help: "Total number of guides skipped",
		}),
		StepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfinder_step_errors_total",
				Help: "Total number of failed step executions, by stage",
			},
			[]string{"stage"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayfinder_step_duration_seconds",
				Help:    "Duration of successful step executions",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step_id"},
		),
		started: make(map[string]time.Time),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.GuidesStarted, m.GuidesCompleted, m.GuidesSkipped, m.StepErrors, m.StepDuration)
	}
	return m
}

// Attach subscribes to every event on bus and returns the subscription id.
func (m *Metrics) Attach(bus *event.Bus) string {
	return bus.SubscribeAll(m.Observe)
}

// Observe folds one event into the metrics.
func (m *Metrics) Observe(ev domain.Event) {
	m.Events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case domain.EventGuideStarted:
		m.GuidesStarted.Inc()
	case domain.EventGuideCompleted:
		m.GuidesCompleted.Inc()
	case domain.EventGuideSkipped:
		m.GuidesSkipped.Inc()
	case domain.EventStepExecuting:
		m.mu.Lock()
		m.started[key(ev)] = ev.Timestamp
		m.mu.Unlock()
	case domain.EventStepExecuted:
		m.mu.Lock()
		start, ok := m.started[key(ev)]
		delete(m.started, key(ev))
		m.mu.Unlock()
		if ok && !start.IsZero() && !ev.Timestamp.Before(start) {
			m.StepDuration.WithLabelValues(ev.StepID).Observe(ev.Timestamp.Sub(start).Seconds())
		}
	case domain.EventError:
		stage, _ := ev.Context["stage"].(string)
		if stage == "" {
			return
		}
		m.StepErrors.WithLabelValues(stage).Inc()
		m.mu.Lock()
		delete(m.started, key(ev))
		m.mu.Unlock()
	}
}

func key(ev domain.Event) string {
	return ev.GuideID + "/" + ev.StepID
}
