package metrics

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

type stubCloudWatch struct {
	input *cloudwatch.PutMetricDataInput
}

func (s *stubCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	s.input = in
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestPublishRunCompleted(t *testing.T) {
	stub := &stubCloudWatch{}
	p := NewPublisher(stub)

	run := &model.Run{
		RunID:          "PATCHRUN-001",
		ClientID:       "client-a",
		Status:         model.RunStatusCompleted,
		SuccessRate:    97,
		DurationHours:  4.5,
		DevicesPatched: 60,
	}
	require.NoError(t, p.PublishRunCompleted(context.Background(), run, 1170))

	require.NotNil(t, stub.input)
	assert.Equal(t, Namespace, aws.ToString(stub.input.Namespace))
	require.Len(t, stub.input.MetricData, 5)

	byName := map[string]float64{}
	for _, d := range stub.input.MetricData {
		byName[aws.ToString(d.MetricName)] = aws.ToFloat64(d.Value)
	}
	assert.Equal(t, 97.0, byName["SuccessRate"])
	assert.Equal(t, 4.5, byName["DurationHours"])
	assert.Equal(t, 1170.0, byName["ExposureHoursReduced"])
	assert.Equal(t, 0.0, byName["Rollbacks"])
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	assert.NoError(t, p.PublishRunCompleted(context.Background(), &model.Run{}, 0))
}
