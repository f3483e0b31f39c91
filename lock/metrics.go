/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the lock manager Prometheus collectors. A nil *Metrics
// is valid and records nothing, so library users and tests may opt out.
type Metrics struct {
	acquires       *prometheus.CounterVec
	releases       *prometheus.CounterVec
	cleanupRemoved prometheus.Counter
	opDuration     *prometheus.HistogramVec
}

// NewMetrics initializes the lock manager collectors and registers them
// on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitelock",
			Name:      "acquire_total",
			Help:      "Number of lock acquisition attempts, by result.",
		}, []string{"result"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitelock",
			Name:      "release_total",
			Help:      "Number of lock releases, by result.",
		}, []string{"result"}),
		cleanupRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sitelock",
			Name:      "cleanup_removed_total",
			Help:      "Number of stale leases removed by the sweep.",
		}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sitelock",
			Name:      "operation_duration_seconds",
			Help:      "Lock operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.acquires, m.releases, m.cleanupRemoved, m.opDuration)
	return m
}

func (m *Metrics) incAcquire(ok bool) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) incRelease(ok bool) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) addCleanupRemoved(count int64) {
	if m == nil || count == 0 {
		return
	}
	m.cleanupRemoved.Add(float64(count))
}

func (m *Metrics) observeOp(op string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "busy"
}
