package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics counts reservations released by the TTL sweep.
type SweepMetrics struct {
	swept prometheus.Counter
}

// NewSweepMetrics registers the sweep metrics on the provided registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_swept_total",
		Help:      "Expired stock reservations released by the sweep job.",
	})
	reg.MustRegister(swept)
	return &SweepMetrics{swept: swept}
}

// AddSwept records n reservations released by one sweep pass.
func (s *SweepMetrics) AddSwept(n int) {
	if s == nil || s.swept == nil || n <= 0 {
		return
	}
	s.swept.Add(float64(n))
}
