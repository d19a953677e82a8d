package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "us-east-2", cfg.Region)
	assert.Equal(t, "PatchPlans", cfg.PlansTable)
	assert.Equal(t, "PatchRuns", cfg.RunsTable)
	assert.Equal(t, 10*time.Second, cfg.AdvisorTimeout)
	assert.Equal(t, 95.0, cfg.SuccessThresholdPercent)
	assert.Equal(t, 24.0, cfg.BaselineExposureHours)
	assert.True(t, cfg.SuperOpsMock)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("DYNAMODB_TABLE_PLANS", "PlansStaging")
	t.Setenv("SUPEROPS_MOCK", "false")
	t.Setenv("KPI_SUCCESS_THRESHOLD_PERCENT", "99.5")
	t.Setenv("ADVISOR_TIMEOUT", "3s")

	cfg := FromEnv()

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "PlansStaging", cfg.PlansTable)
	assert.False(t, cfg.SuperOpsMock)
	assert.Equal(t, 99.5, cfg.SuccessThresholdPercent)
	assert.Equal(t, 3*time.Second, cfg.AdvisorTimeout)
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SUPEROPS_MOCK", "not-a-bool")
	t.Setenv("KPI_BASELINE_EXPOSURE_HOURS", "soon")
	t.Setenv("ADVISOR_TIMEOUT", "whenever")

	cfg := FromEnv()

	assert.True(t, cfg.SuperOpsMock)
	assert.Equal(t, 24.0, cfg.BaselineExposureHours)
	assert.Equal(t, 10*time.Second, cfg.AdvisorTimeout)
}
