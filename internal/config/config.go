package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries all environment-derived settings. It is loaded once at
// startup and passed to constructors; nothing else reads the process
// environment.
type Config struct {
	// AWS
	Region string

	// Bedrock
	BedrockModelID string
	AdvisorTimeout time.Duration

	// DynamoDB
	PlansTable string
	RunsTable  string

	// Step Functions
	StateMachineARN string

	// SuperOps inventory/ticketing
	SuperOpsAPIURL string
	SuperOpsAPIKey string
	SuperOpsMock   bool

	// KPI policy
	SuccessThresholdPercent float64
	BaselineExposureHours   float64

	// HTTP server
	ListenAddr string

	// Logging
	LogLevel  string
	LogFormat string
}

// FromEnv loads configuration from the process environment, applying the
// demo defaults for anything unset.
func FromEnv() Config {
	return Config{
		Region: getenv("AWS_REGION", "us-east-2"),

		BedrockModelID: getenv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-haiku-20241022-v1:0"),
		AdvisorTimeout: getduration("ADVISOR_TIMEOUT", 10*time.Second),

		PlansTable: getenv("DYNAMODB_TABLE_PLANS", "PatchPlans"),
		RunsTable:  getenv("DYNAMODB_TABLE_PATCH_RUNS", "PatchRuns"),

		StateMachineARN: getenv("STEP_FUNCTIONS_ARN", ""),

		SuperOpsAPIURL: getenv("SUPEROPS_API_URL", "https://api.superops.ai"),
		SuperOpsAPIKey: getenv("SUPEROPS_API_KEY", ""),
		SuperOpsMock:   getbool("SUPEROPS_MOCK", true),

		SuccessThresholdPercent: getfloat("KPI_SUCCESS_THRESHOLD_PERCENT", 95),
		BaselineExposureHours:   getfloat("KPI_BASELINE_EXPOSURE_HOURS", 24),

		ListenAddr: getenv("LISTEN_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getfloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
