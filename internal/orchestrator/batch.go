package orchestrator

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/patchpilot-io/patchpilot/internal/logging"
)

// patchDocument is the SSM document driving patch installs and scans.
const patchDocument = "AWS-RunPatchBaseline"

// SSMAPI is the slice of the Systems Manager client the batch executor uses.
type SSMAPI interface {
	SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	DescribeInstanceInformation(ctx context.Context, params *ssm.DescribeInstanceInformationInput, optFns ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error)
}

// BatchExecutor services the per-batch callbacks from the state machine:
// execute a wave, check its health, roll it back. Commands are sent one
// device at a time so a single unreachable device fails alone.
type BatchExecutor struct {
	client SSMAPI
}

// NewBatchExecutor returns an SSM-backed batch executor.
func NewBatchExecutor(client SSMAPI) *BatchExecutor {
	return &BatchExecutor{client: client}
}

// DeviceResult is the outcome of a patch or rollback command on one device.
type DeviceResult struct {
	Status    string `json:"status"`
	CommandID string `json:"command_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult summarizes a wave-level operation.
type BatchResult struct {
	BatchID       string                  `json:"batch_id"`
	DeviceCount   int                     `json:"device_count"`
	Successful    int                     `json:"successful"`
	Failed        int                     `json:"failed"`
	DeviceResults map[string]DeviceResult `json:"device_results"`
}

// HealthResult summarizes a wave health check and the proceed decision.
type HealthResult struct {
	BatchID       string                  `json:"batch_id"`
	DeviceCount   int                     `json:"device_count"`
	Healthy       int                     `json:"healthy"`
	Unhealthy     int                     `json:"unhealthy"`
	HealthPercent float64                 `json:"health_percent"`
	Proceed       bool                    `json:"proceed"`
	DeviceHealth  map[string]DeviceResult `json:"device_health"`
}

// ExecuteBatch installs pending patches on every device in the wave.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, batchID string, deviceIDs []string) *BatchResult {
	return e.sendToAll(ctx, batchID, deviceIDs, "Install", "executing", "patch_command_sent")
}

// RollbackBatch triggers a scan-based rollback pass on the wave's devices.
func (e *BatchExecutor) RollbackBatch(ctx context.Context, batchID string, deviceIDs []string) *BatchResult {
	return e.sendToAll(ctx, batchID, deviceIDs, "Scan", "rolling_back", "rollback_initiated")
}

func (e *BatchExecutor) sendToAll(ctx context.Context, batchID string, deviceIDs []string, operation, okStatus, event string) *BatchResult {
	result := &BatchResult{
		BatchID:       batchID,
		DeviceCount:   len(deviceIDs),
		DeviceResults: make(map[string]DeviceResult),
	}

	for _, deviceID := range deviceIDs {
		out, err := e.client.SendCommand(ctx, &ssm.SendCommandInput{
			InstanceIds:  []string{deviceID},
			DocumentName: aws.String(patchDocument),
			Parameters: map[string][]string{
				"Operation":   {operation},
				"PatchGroups": {batchID},
			},
		})
		if err != nil {
			logging.Error("patch command failed", "device_id", deviceID, "batch_id", batchID, "error", err)
			result.DeviceResults[deviceID] = DeviceResult{Status: "failed", Error: err.Error()}
			result.Failed++
			continue
		}
		commandID := ""
		if out.Command != nil {
			commandID = aws.ToString(out.Command.CommandId)
		}
		result.DeviceResults[deviceID] = DeviceResult{Status: okStatus, CommandID: commandID}
		result.Successful++
		logging.Event(event, "device_id", deviceID, "command_id", commandID, "batch_id", batchID)
	}

	return result
}

// CheckBatchHealth pings each device through SSM instance information and
// decides whether the rollout may proceed.
func (e *BatchExecutor) CheckBatchHealth(ctx context.Context, batchID string, deviceIDs []string, thresholdPercent float64) *HealthResult {
	result := &HealthResult{
		BatchID:      batchID,
		DeviceCount:  len(deviceIDs),
		DeviceHealth: make(map[string]DeviceResult),
	}

	for _, deviceID := range deviceIDs {
		out, err := e.client.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{
			Filters: []types.InstanceInformationStringFilter{
				{Key: aws.String("InstanceIds"), Values: []string{deviceID}},
			},
		})
		if err != nil {
			logging.Error("health check failed", "device_id", deviceID, "error", err)
			result.DeviceHealth[deviceID] = DeviceResult{Status: "error", Error: err.Error()}
			result.Unhealthy++
			continue
		}
		if len(out.InstanceInformationList) == 0 {
			result.DeviceHealth[deviceID] = DeviceResult{Status: "unknown", Error: "device not found"}
			result.Unhealthy++
			continue
		}
		if out.InstanceInformationList[0].PingStatus == types.PingStatusOnline {
			result.DeviceHealth[deviceID] = DeviceResult{Status: "healthy"}
			result.Healthy++
		} else {
			result.DeviceHealth[deviceID] = DeviceResult{Status: "unhealthy"}
			result.Unhealthy++
		}
	}

	if len(deviceIDs) > 0 {
		result.HealthPercent = float64(result.Healthy) / float64(len(deviceIDs)) * 100
	}
	result.Proceed = result.HealthPercent >= thresholdPercent

	logging.Event("health_check_completed",
		"batch_id", batchID,
		"health_percent", result.HealthPercent,
		"proceed", result.Proceed)
	return result
}
