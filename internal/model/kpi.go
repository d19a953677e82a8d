package model

import "time"

// KPISummary is the dashboard KPI view over a trailing window of completed
// runs. It is derived on demand and never persisted.
type KPISummary struct {
	PeriodDays  int        `json:"period_days"`
	GeneratedAt time.Time  `json:"generated_at"`
	Summary     KPIMetrics `json:"summary"`
	Trends      KPITrends  `json:"trends"`
}

// KPIMetrics are the aggregate figures for the window.
type KPIMetrics struct {
	TotalPatches              int     `json:"total_patches"`
	SuccessfulPatches         int     `json:"successful_patches"`
	FailedPatches             int     `json:"failed_patches"`
	AverageSuccessRate        float64 `json:"average_success_rate"`
	TotalExposureHoursReduced float64 `json:"total_exposure_hours_reduced"`
	AverageDurationHours      float64 `json:"average_duration_hours"`
	TotalRollbacks            int     `json:"total_rollbacks"`
}

// KPITrends are fixed-length per-day sequences, ordered oldest to newest and
// zero-filled for days without completed runs.
type KPITrends struct {
	SuccessRate   []float64 `json:"success_rate_trend"`
	Duration      []float64 `json:"duration_trend"`
	ExposureHours []float64 `json:"exposure_hours_trend"`
}
