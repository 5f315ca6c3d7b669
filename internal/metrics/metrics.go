package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collects the metrics of a run and writes them in the prometheus text format,
// e.g. for the textfile collector of the node exporter.
//
// Use NewMetrics to create a new metrics object.
type Metrics interface {
	// Records the result of fetching a feed.
	ObserveSource(uri string, status int, timestamp int64)
	// Records the result of an action.
	ObserveRun(action string, run Run)
	// Writes all metrics to the file. Does nothing if the filename is empty.
	Write() error
}

type Run struct {
	Timestamp int64
	Records   int
	Added     int
	Skipped   int
	Invalid   int
	Failed    int
	Domains   int
	Err       error
}

const namespace = "godrop"

func NewMetrics(filename string) Metrics {
	var m metrics_impl
	m.filename = filename
	m.registry = prometheus.NewRegistry()
	factory := promauto.With(m.registry)
	m.fetchStatus = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fetch_status",
		Help:      "HTTP status of the latest fetch of a feed, 0 on transport errors.",
	}, []string{"uri"})
	m.feedTimestamp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_timestamp_seconds",
		Help:      "Last modification time of a feed.",
	}, []string{"uri"})
	m.contentTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "content_timestamp_seconds",
		Help:      "Newest modification time of all feeds of the latest refresh.",
	})
	m.elements = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "elements",
		Help:      "Records of the latest refresh by result.",
	}, []string{"result"})
	m.domains = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "domains",
		Help:      "Domains written to the zone files by the latest refresh.",
	})
	m.runs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Actions run by result.",
	}, []string{"action", "result"})
	m.lastRun = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Time of the latest run of an action.",
	}, []string{"action"})
	return &m
}
