// Package metrics exposes queue statistics as Prometheus metrics.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"crawlqueue/internal/logging"
	"crawlqueue/internal/queue"
)

const namespace = "crawlqueue"

// scrapeTimeout bounds the store queries behind one scrape.
const scrapeTimeout = 5 * time.Second

// StatsSource is the subset of the queue store a scrape reads.
type StatsSource interface {
	Counts(ctx context.Context) (queue.Counts, error)
	CountPendingItemsGroupedByConfiguration(ctx context.Context) ([]queue.ConfigurationCount, error)
}

// Collector reads queue counts on every scrape. Values are never cached, so a
// scrape reflects the store at that moment.
type Collector struct {
	source StatsSource
	logger *slog.Logger

	total                  *prometheus.Desc
	pending                *prometheus.Desc
	assignedPending        *prometheus.Desc
	unassignedPending      *prometheus.Desc
	pendingByConfiguration *prometheus.Desc
	assignedByConfig       *prometheus.Desc
	scrapeErrors           prometheus.Counter
}

// NewCollector builds a collector over source.
func NewCollector(source StatsSource, logger *slog.Logger) *Collector {
	return &Collector{
		source: source,
		logger: logging.NewComponentLogger(logger, "metrics"),
		total: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "entries", "total"),
			"Number of queue entries, executed or not.", nil, nil),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "entries", "pending"),
			"Number of queue entries not yet executed.", nil, nil),
		assignedPending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "entries", "assigned_pending"),
			"Number of pending entries claimed by a worker process.", nil, nil),
		unassignedPending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "entries", "unassigned_pending"),
			"Number of pending entries no worker process has claimed.", nil, nil),
		pendingByConfiguration: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pending_by_configuration"),
			"Pending entries per crawl configuration.", []string{"configuration"}, nil),
		assignedByConfig: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "assigned_by_configuration"),
			"Assigned pending entries per crawl configuration.", []string{"configuration"}, nil),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Number of scrapes that failed to read the queue store.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.pending
	ch <- c.assignedPending
	ch <- c.unassignedPending
	ch <- c.pendingByConfiguration
	ch <- c.assignedByConfig
	c.scrapeErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	if counts, err := c.source.Counts(ctx); err != nil {
		c.fail(err)
	} else {
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(counts.Total))
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(counts.Pending))
		ch <- prometheus.MustNewConstMetric(c.assignedPending, prometheus.GaugeValue, float64(counts.AssignedPending))
		ch <- prometheus.MustNewConstMetric(c.unassignedPending, prometheus.GaugeValue, float64(counts.UnassignedPending))
	}

	if rows, err := c.source.CountPendingItemsGroupedByConfiguration(ctx); err != nil {
		c.fail(err)
	} else {
		for _, row := range rows {
			ch <- prometheus.MustNewConstMetric(c.pendingByConfiguration, prometheus.GaugeValue, float64(row.Unprocessed), row.ConfigurationName)
			ch <- prometheus.MustNewConstMetric(c.assignedByConfig, prometheus.GaugeValue, float64(row.AssignedButUnprocessed), row.ConfigurationName)
		}
	}

	c.scrapeErrors.Collect(ch)
}

func (c *Collector) fail(err error) {
	c.scrapeErrors.Inc()
	logging.WarnWithContext(c.logger, "queue metrics scrape failed", "metrics_scrape_failed",
		logging.Error(err),
		slog.String(logging.FieldErrorHint, "check queue store connectivity"),
	)
}
