// Package metrics projects a finalized run report onto Prometheus gauges and
// writes them in the text exposition format for node_exporter's textfile
// collector.
//
// Status gauges use 0 for OK, 1 for WARN and 2 for FAIL.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jackpotwatch/internal/fileutil"
	"jackpotwatch/internal/report"
)

// Recorder holds one run's gauges in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	runStatus      prometheus.Gauge
	checkStatus    *prometheus.GaugeVec
	rowCount       *prometheus.GaugeVec
	freshnessLag   prometheus.Gauge
	runDuration    prometheus.Gauge
	lastRunSeconds prometheus.Gauge
}

// NewRecorder registers the run gauges on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jackpotwatch_run_status",
			Help: "Overall status of the last run (0=OK, 1=WARN, 2=FAIL).",
		}),
		checkStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jackpotwatch_key_check_status",
			Help: "Status of each key check in the last run (0=OK, 1=WARN, 2=FAIL).",
		}, []string{"check"}),
		rowCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jackpotwatch_row_count",
			Help: "Row counters of the last run.",
		}, []string{"name"}),
		freshnessLag: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jackpotwatch_freshness_lag_seconds",
			Help: "Seconds between the next draw time and the run, floored at zero.",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jackpotwatch_run_duration_seconds",
			Help: "Wall-clock duration of the last run.",
		}),
		lastRunSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jackpotwatch_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe sets every gauge from rep. Unknown freshness leaves the lag gauge unset.
func (r *Recorder) Observe(rep *report.Report) {
	r.runStatus.Set(statusValue(rep.Status))
	for _, check := range rep.KeyChecks {
		r.checkStatus.WithLabelValues(check.Name).Set(statusValue(check.Status))
	}
	for name, value := range rep.RowCounts {
		r.rowCount.WithLabelValues(name).Set(float64(value))
	}
	if rep.Freshness.LagSeconds != nil {
		r.freshnessLag.Set(*rep.Freshness.LagSeconds)
	}
	if rep.DurationSeconds != nil {
		r.runDuration.Set(*rep.DurationSeconds)
	}
	if rep.LastRunTime != nil {
		if finished, err := time.Parse(time.RFC3339, *rep.LastRunTime); err == nil {
			r.lastRunSeconds.Set(float64(finished.Unix()))
		}
	}
}

// WriteTextfile writes the registry to path, creating its directory.
func (r *Recorder) WriteTextfile(path string) error {
	if err := fileutil.EnsureDir(path); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// WriteReport is NewRecorder, Observe and WriteTextfile in one call.
func WriteReport(path string, rep *report.Report) error {
	rec := NewRecorder()
	rec.Observe(rep)
	return rec.WriteTextfile(path)
}

func statusValue(status report.Status) float64 {
	switch report.NormalizeStatus(string(status)) {
	case report.StatusOK:
		return 0
	case report.StatusFail:
		return 2
	default:
		return 1
	}
}
