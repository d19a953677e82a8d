// Package metrics publishes per-run KPIs to CloudWatch.
package metrics

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
)

// Namespace is the CloudWatch namespace for patch KPIs.
const Namespace = "PatchPilot"

// CloudWatchAPI is the slice of the CloudWatch client the publisher uses.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher emits run completion metrics. A nil *Publisher is a no-op, so
// callers do not branch on whether metrics are configured.
type Publisher struct {
	client CloudWatchAPI
}

// NewPublisher returns a CloudWatch metrics publisher.
func NewPublisher(client CloudWatchAPI) *Publisher {
	return &Publisher{client: client}
}

// PublishRunCompleted emits success rate, duration and exposure reduction
// for a completed run, dimensioned by client.
func (p *Publisher) PublishRunCompleted(ctx context.Context, run *model.Run, exposureHoursReduced float64) error {
	if p == nil || p.client == nil {
		return nil
	}

	dims := []types.Dimension{
		{Name: aws.String("ClientId"), Value: aws.String(run.ClientID)},
	}
	datum := func(name string, value float64, unit types.StandardUnit) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(value),
			Unit:       unit,
			Dimensions: dims,
		}
	}

	rollbacks := 0.0
	if run.RolledBack() {
		rollbacks = 1
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []types.MetricDatum{
			datum("SuccessRate", run.SuccessRate, types.StandardUnitPercent),
			datum("DurationHours", run.DurationHours, types.StandardUnitNone),
			datum("DevicesPatched", float64(run.DevicesPatched), types.StandardUnitCount),
			datum("ExposureHoursReduced", exposureHoursReduced, types.StandardUnitNone),
			datum("Rollbacks", rollbacks, types.StandardUnitCount),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish run metrics for %s: %w", run.RunID, err)
	}
	logging.Event("run_metrics_published", "run_id", run.RunID, "client_id", run.ClientID)
	return nil
}
