package metrics

import (
	"context"
	"fmt"

	"github.com/ateliercolor/presstrack/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type jobStatsCollector struct {
	store         store.Store
	totalJobs     *prometheus.Desc
	totalByStatus *prometheus.Desc
}

func NewJobStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_jobs_%s", presstrack, name)
	}

	return &jobStatsCollector{
		store: s,
		totalJobs: prometheus.NewDesc(
			fqName("total"),
			"Total number of jobs.",
			nil,
			prometheus.Labels{},
		),
		totalByStatus: prometheus.NewDesc(
			fqName("by_status_total"),
			"Total jobs by status",
			[]string{"status"},
			prometheus.Labels{},
		),
	}
}

func (c *jobStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalJobs
	ch <- c.totalByStatus
}

// Collect implements Collector.
func (c *jobStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Statistics(context.Background())
	if err != nil {
		zap.S().Named("job_collector").Errorf("failed to collect job statistics: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.totalJobs, prometheus.GaugeValue, float64(stats.Total))

	for status, total := range stats.ByStatus {
		ch <- prometheus.MustNewConstMetric(c.totalByStatus, prometheus.GaugeValue, float64(total), status)
	}
}
