package runner

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	verdicts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	frames   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vxlancni",
			Subsystem: "datapath",
			Name:      "verdicts_total",
			Help:      "Verdicts returned per classifier program.",
		}, []string{"program", "verdict"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vxlancni",
			Subsystem: "datapath",
			Name:      "outcomes_total",
			Help:      "Final outcome per frame.",
		}, []string{"direction", "outcome"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vxlancni",
			Subsystem: "datapath",
			Name:      "frames_total",
			Help:      "Frames classified.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.verdicts, m.outcomes, m.frames} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register datapath metrics")
		}
	}
	return m, nil
}

func (m *Metrics) Observe(t Trace) {
	m.frames.Inc()
	for _, s := range t.Steps {
		m.verdicts.WithLabelValues(s.Program, s.Result.Verdict.String()).Inc()
	}
	m.outcomes.WithLabelValues(t.Direction.String(), t.Outcome).Inc()
}
