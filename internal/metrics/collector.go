package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// QueueStats provides the collector access to transcript queue state.
type QueueStats interface {
	Pending() int
	Processing() int
	FailedRetained() int
}

// SubscriberCounter reports live SSE subscribers.
type SubscriberCounter interface {
	SubscriberCount() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool   *pgxpool.Pool
	queue  QueueStats
	events SubscriberCounter

	queuePending    *prometheus.Desc
	queueProcessing *prometheus.Desc
	queueFailed     *prometheus.Desc
	sseSubscribers  *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Any argument may be nil; the matching gauges then report 0.
func NewCollector(pool *pgxpool.Pool, queue QueueStats, events SubscriberCounter) *Collector {
	return &Collector{
		pool:   pool,
		queue:  queue,
		events: events,
		queuePending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "transcript_queue", "pending"),
			"Transcript jobs waiting for the worker.",
			nil, nil,
		),
		queueProcessing: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "transcript_queue", "processing"),
			"Transcript jobs currently in flight.",
			nil, nil,
		),
		queueFailed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "transcript_queue", "failed_retained"),
			"Failed transcript jobs retained until cleared.",
			nil, nil,
		),
		sseSubscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sse_subscribers_active"),
			"Current number of SSE subscribers.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuePending
	ch <- c.queueProcessing
	ch <- c.queueFailed
	ch <- c.sseSubscribers
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var pending, processing, failed, subs float64
	if c.queue != nil {
		pending = float64(c.queue.Pending())
		processing = float64(c.queue.Processing())
		failed = float64(c.queue.FailedRetained())
	}
	if c.events != nil {
		subs = float64(c.events.SubscriberCount())
	}
	ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, pending)
	ch <- prometheus.MustNewConstMetric(c.queueProcessing, prometheus.GaugeValue, processing)
	ch <- prometheus.MustNewConstMetric(c.queueFailed, prometheus.GaugeValue, failed)
	ch <- prometheus.MustNewConstMetric(c.sseSubscribers, prometheus.GaugeValue, subs)

	var total, acquired, idle float64
	if c.pool != nil {
		st := c.pool.Stat()
		total = float64(st.TotalConns())
		acquired = float64(st.AcquiredConns())
		idle = float64(st.IdleConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, acquired)
	ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, idle)
}
