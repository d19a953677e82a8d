// Package kpi summarizes completed patch runs into dashboard statistics.
package kpi

import (
	"time"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// TrendBuckets is the fixed number of daily trend buckets returned,
// regardless of the requested window.
const TrendBuckets = 30

// Policy holds the business constants the summary depends on. Exposure hours
// reduced per run is devices patched times the hours saved against the
// unpatched baseline (the critical-tier SLA max exposure), floored at zero.
type Policy struct {
	// SuccessThresholdPercent classifies a run as successful.
	SuccessThresholdPercent float64
	// BaselineExposureHours is the assumed exposure of an unpatched device.
	BaselineExposureHours float64
}

// DefaultPolicy mirrors the demo configuration defaults.
func DefaultPolicy() Policy {
	return Policy{SuccessThresholdPercent: 95, BaselineExposureHours: 24}
}

// Aggregator computes KPI summaries over run history.
type Aggregator struct {
	policy Policy
	now    func() time.Time
}

// NewAggregator returns an aggregator with the given policy.
func NewAggregator(policy Policy) *Aggregator {
	return &Aggregator{policy: policy, now: time.Now}
}

// Summarize computes the KPI summary for completed runs inside the trailing
// window. An empty input yields a zeroed summary, never an error.
func (a *Aggregator) Summarize(runs []*model.Run, windowDays int) *model.KPISummary {
	if windowDays <= 0 {
		windowDays = 30
	}
	now := a.now().UTC()
	cutoff := now.AddDate(0, 0, -windowDays)

	summary := &model.KPISummary{
		PeriodDays:  windowDays,
		GeneratedAt: now,
		Trends: model.KPITrends{
			SuccessRate:   make([]float64, TrendBuckets),
			Duration:      make([]float64, TrendBuckets),
			ExposureHours: make([]float64, TrendBuckets),
		},
	}

	var (
		sumRate, sumDuration float64
		bucketRate           [TrendBuckets]float64
		bucketDuration       [TrendBuckets]float64
		bucketExposure       [TrendBuckets]float64
		bucketCount          [TrendBuckets]int
	)

	for _, run := range runs {
		if run.Status != model.RunStatusCompleted || run.CompletedAt == nil {
			continue
		}
		completed := run.CompletedAt.UTC()
		if completed.Before(cutoff) || completed.After(now) {
			continue
		}

		summary.Summary.TotalPatches++
		sumRate += run.SuccessRate
		sumDuration += run.DurationHours
		if run.SuccessRate >= a.policy.SuccessThresholdPercent {
			summary.Summary.SuccessfulPatches++
		}
		if run.RolledBack() {
			summary.Summary.TotalRollbacks++
		}
		exposure := a.exposureReduced(run)
		summary.Summary.TotalExposureHoursReduced += exposure

		// Bucket index counts days back from now; flipped below so trends
		// read oldest to newest.
		age := int(now.Sub(completed).Hours() / 24)
		if age >= 0 && age < TrendBuckets {
			idx := TrendBuckets - 1 - age
			bucketRate[idx] += run.SuccessRate
			bucketDuration[idx] += run.DurationHours
			bucketExposure[idx] += exposure
			bucketCount[idx]++
		}
	}

	total := summary.Summary.TotalPatches
	summary.Summary.FailedPatches = total - summary.Summary.SuccessfulPatches
	if total > 0 {
		summary.Summary.AverageSuccessRate = sumRate / float64(total)
		summary.Summary.AverageDurationHours = sumDuration / float64(total)
	}

	for i := 0; i < TrendBuckets; i++ {
		if bucketCount[i] == 0 {
			continue
		}
		n := float64(bucketCount[i])
		summary.Trends.SuccessRate[i] = bucketRate[i] / n
		summary.Trends.Duration[i] = bucketDuration[i] / n
		summary.Trends.ExposureHours[i] = bucketExposure[i] / n
	}

	return summary
}

// ExposureReduced exposes the per-run exposure metric for reporting.
func (a *Aggregator) ExposureReduced(run *model.Run) float64 {
	return a.exposureReduced(run)
}

func (a *Aggregator) exposureReduced(run *model.Run) float64 {
	saved := a.policy.BaselineExposureHours - run.DurationHours
	if saved < 0 {
		return 0
	}
	return float64(run.DevicesPatched) * saved
}
