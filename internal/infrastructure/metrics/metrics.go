// Package metrics exposes transaction and invocation metrics to Prometheus.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"txchain/internal/core/proxy"
	"txchain/internal/core/tx"
)

const namespace = "txchain"

// Transaction outcomes recorded by Collector.
const (
	OutcomeCommitted   = "committed"
	OutcomeRolledBack  = "rolled_back"
	OutcomeBeginFailed = "begin_failed"
)

// Compile-time check that Collector implements tx.Observer interface.
var _ tx.Observer = (*Collector)(nil)

// Collector records transaction outcomes and invocation latency.
type Collector struct {
	transactions    *prometheus.CounterVec
	rollbackFailed  prometheus.Counter
	active          prometheus.Gauge
	invocationTimes *prometheus.HistogramVec
}

// NewCollector creates the collector and registers it on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions finished, by outcome.",
		}, []string{"outcome"}),
		rollbackFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_failures_total",
			Help:      "Rollbacks that returned an error.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transactions_active",
			Help:      "Transactions currently open.",
		}),
		invocationTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Latency of dispatched invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target", "transactional"}),
	}

	for _, col := range []prometheus.Collector{c.transactions, c.rollbackFailed, c.active, c.invocationTimes} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) OnBegin(context.Context, proxy.Invocation) {
	c.active.Inc()
}

func (c *Collector) OnBeginFailed(context.Context, proxy.Invocation, error) {
	c.transactions.WithLabelValues(OutcomeBeginFailed).Inc()
}

func (c *Collector) OnCommit(context.Context, proxy.Invocation) {
	c.active.Dec()
	c.transactions.WithLabelValues(OutcomeCommitted).Inc()
}

func (c *Collector) OnRollback(context.Context, proxy.Invocation, error) {
	c.active.Dec()
	c.transactions.WithLabelValues(OutcomeRolledBack).Inc()
}

func (c *Collector) OnRollbackFailed(context.Context, proxy.Invocation, error) {
	c.rollbackFailed.Inc()
}

// Interceptor returns a chain interceptor observing invocation latency.
// Place it outside the transaction interceptor to include begin and commit.
func (c *Collector) Interceptor() proxy.Interceptor {
	return proxy.InterceptorFunc(func(ctx context.Context, inv proxy.Invocation, next proxy.Chain) (any, error) {
		start := time.Now()
		res, err := next.Proceed(ctx)
		c.invocationTimes.
			WithLabelValues(inv.Target, strconv.FormatBool(inv.Transactional)).
			Observe(time.Since(start).Seconds())
		return res, err
	})
}
