// Package metrics holds the Prometheus counters C7 updates while driving a
// batch, and a text renderer for the end-of-run summary. recompress is a
// CLI, not a service, so these are never exposed over HTTP; Render
// produces the same text a scrape would return, for the terminal/log.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	FilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recompress",
		Name:      "files_total",
		Help:      "Total input files discovered for this run.",
	})

	FilesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recompress",
		Name:      "files_succeeded_total",
		Help:      "Files committed successfully.",
	})

	FilesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recompress",
		Name:      "files_failed_total",
		Help:      "Files that errored during the pipeline.",
	})

	FilesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recompress",
		Name:      "files_skipped_total",
		Help:      "Files skipped, by reason (duplicate, the router's skip reason, quality_failed, skipped_exists, skipped_size_increase).",
	}, []string{"reason"})

	InputBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recompress",
		Name:      "input_bytes_total",
		Help:      "Total bytes read from source files that were processed.",
	})

	OutputBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recompress",
		Name:      "output_bytes_total",
		Help:      "Total bytes committed to final output files.",
	})

	ActiveWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "recompress",
		Name:      "active_workers",
		Help:      "Number of pipeline tasks currently in flight.",
	})

	EncodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recompress",
		Name:      "encode_duration_seconds",
		Help:      "Wall-clock duration of a single file's full C1-C5 pipeline.",
		Buckets:   []float64{1, 5, 15, 30, 60, 180, 600, 1800},
	})
)

// Registry builds a fresh, isolated Prometheus registry carrying only
// recompress's own metrics (no Go-runtime/process collectors), since a
// batch run reports a single summary rather than serving a scrape target.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		FilesTotal,
		FilesSucceeded,
		FilesFailed,
		FilesSkipped,
		InputBytesTotal,
		OutputBytesTotal,
		ActiveWorkers,
		EncodeDuration,
	)
	return reg
}

// Render produces the same exposition-format text a scrape would return,
// for inclusion in the end-of-run summary or log file.
func Render(reg *prometheus.Registry) (string, error) {
	mfs, err := reg.Gather()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}
