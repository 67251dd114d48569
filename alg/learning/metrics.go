package learning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts training progress. A nil *Metrics records nothing.
type Metrics struct {
	updates       prometheus.Counter
	skipped       prometheus.Counter
	epochs        prometheus.Counter
	searchLatency *prometheus.HistogramVec
	devScore      *prometheus.GaugeVec
}

// NewMetrics registers the training metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		updates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jointer",
			Subsystem: "learning",
			Name:      "updates_total",
			Help:      "Weight updates applied by the learner",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jointer",
			Subsystem: "learning",
			Name:      "skipped_instances_total",
			Help:      "Training instances whose search produced no state",
		}),
		epochs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jointer",
			Subsystem: "learning",
			Name:      "epochs_total",
			Help:      "Completed training epochs",
		}),
		searchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jointer",
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "Beam search time per instance",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"mode"}),
		devScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "jointer",
			Subsystem: "learning",
			Name:      "dev_f1",
			Help:      "Latest F1 on the development data",
		}, []string{"score"}),
	}
}

func (m *Metrics) addUpdates(n int) {
	if m != nil && n > 0 {
		m.updates.Add(float64(n))
	}
}

func (m *Metrics) skip() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) epoch() {
	if m != nil {
		m.epochs.Inc()
	}
}

func (m *Metrics) observeSearch(mode string, seconds float64) {
	if m != nil {
		m.searchLatency.WithLabelValues(mode).Observe(seconds)
	}
}

func (m *Metrics) setScores(scores []Score) {
	if m == nil {
		return
	}
	for _, s := range scores {
		m.devScore.WithLabelValues(s.Name).Set(s.F1())
	}
}
