// Package metrics holds the process-local decision counters and the
// Prometheus collectors built on top of them.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters are three monotone decision counters. Increments are lock-free and
// safe from any goroutine. Each service instance reports its own values.
type Counters struct {
	total   atomic.Uint64
	allowed atomic.Uint64
	denied  atomic.Uint64
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) IncTotal()   { c.total.Add(1) }
func (c *Counters) IncAllowed() { c.allowed.Add(1) }
func (c *Counters) IncDenied()  { c.denied.Add(1) }

// Snapshot is an approximate view of the counters.
type Snapshot struct {
	Total     uint64  `json:"total_requests"`
	Allowed   uint64  `json:"allowed_requests"`
	Denied    uint64  `json:"denied_requests"`
	AllowRate float64 `json:"allow_rate"`
}

// Snapshot reads the counters without stopping writers. Total is loaded last
// so that Allowed+Denied never exceeds it in the result.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Allowed: c.allowed.Load(),
		Denied:  c.denied.Load(),
	}
	s.Total = c.total.Load()

	s.AllowRate = 1.0
	if s.Total > 0 {
		s.AllowRate = float64(s.Allowed) / float64(s.Total)
	}
	return s
}

// Register exposes the counters on reg as Prometheus counters.
func (c *Counters) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ratelimitd_decisions_total",
			Help: "Rate limit evaluations, including those that failed open",
		}, func() float64 { return float64(c.total.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ratelimitd_decisions_allowed_total",
			Help: "Evaluations admitted by the token bucket",
		}, func() float64 { return float64(c.allowed.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ratelimitd_decisions_denied_total",
			Help: "Evaluations denied by the token bucket",
		}, func() float64 { return float64(c.denied.Load()) }),
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
