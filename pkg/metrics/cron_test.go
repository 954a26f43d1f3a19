package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	fixed := time.Unix(1_772_000_000, 0)
	metrics.now = func() time.Time { return fixed }

	metrics.ObserveRun("listing-expiry", 250*time.Millisecond, nil)
	metrics.ObserveRun("listing-expiry", 100*time.Millisecond, errors.New("db down"))
	metrics.IncSkipped()
	metrics.AddExpired(7)
	metrics.AddExpired(-1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "share_cron_job_runs_total")
	if runs == nil || len(runs.GetMetric()) != 2 {
		t.Fatalf("expected ok and error series, got %v", runs)
	}
	for _, m := range runs.GetMetric() {
		if !matchesLabel(m.GetLabel(), "job", "listing-expiry") || m.GetCounter().GetValue() != 1 {
			t.Fatalf("unexpected run series %v", m)
		}
	}
	if got, err := fetchHistogramSum(mfs, "share_cron_job_duration_seconds", "job", "listing-expiry"); err != nil || got < 0.35 {
		t.Fatalf("expected duration sum 0.35, got %f err %v", got, err)
	}
	last := findMetricFamily(mfs, "share_cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() != float64(fixed.Unix()) {
		t.Fatalf("unexpected last success gauge %v", last)
	}
	if got := findMetricFamily(mfs, "share_cron_listings_expired_total").GetMetric()[0].GetCounter().GetValue(); got != 7 {
		t.Fatalf("expected 7 expired, got %f", got)
	}
	if got := findMetricFamily(mfs, "share_cron_cycles_skipped_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected one skipped cycle, got %f", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var nilMetrics *CronJobMetrics
	nilMetrics.ObserveRun("job", time.Second, nil)
	nilMetrics.IncSkipped()
	nilMetrics.AddExpired(3)

	unregistered := NewCronJobMetrics(nil)
	unregistered.ObserveRun("job", time.Second, errors.New("x"))
	unregistered.AddExpired(1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
