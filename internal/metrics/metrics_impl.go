package metrics

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics_impl struct {
	filename         string
	registry         *prometheus.Registry
	fetchStatus      *prometheus.GaugeVec
	feedTimestamp    *prometheus.GaugeVec
	contentTimestamp prometheus.Gauge
	elements         *prometheus.GaugeVec
	domains          prometheus.Gauge
	runs             *prometheus.CounterVec
	lastRun          *prometheus.GaugeVec
}

func (m *metrics_impl) ObserveSource(uri string, status int, timestamp int64) {
	m.fetchStatus.WithLabelValues(uri).Set(float64(status))
	if timestamp > 0 {
		m.feedTimestamp.WithLabelValues(uri).Set(float64(timestamp))
	}
}

func (m *metrics_impl) ObserveRun(action string, run Run) {
	result := "success"
	if run.Err != nil {
		result = "failure"
	}
	m.runs.WithLabelValues(action, result).Inc()
	m.lastRun.WithLabelValues(action).Set(float64(time.Now().Unix()))
	if action != "refresh" || run.Err != nil {
		return
	}
	if run.Timestamp > 0 {
		m.contentTimestamp.Set(float64(run.Timestamp))
	}
	m.elements.WithLabelValues("records").Set(float64(run.Records))
	m.elements.WithLabelValues("added").Set(float64(run.Added))
	m.elements.WithLabelValues("skipped").Set(float64(run.Skipped))
	m.elements.WithLabelValues("invalid").Set(float64(run.Invalid))
	m.elements.WithLabelValues("failed").Set(float64(run.Failed))
	m.domains.Set(float64(run.Domains))
}

func (m *metrics_impl) Write() error {
	if len(m.filename) == 0 {
		return nil
	}
	err := prometheus.WriteToTextfile(m.filename, m.registry)
	if err == nil {
		log.Debug("Wrote metrics.", "file", m.filename)
	}
	return err
}
