package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot-io/patchpilot/internal/model"
	"github.com/patchpilot-io/patchpilot/internal/store"
)

func testPlan() *model.Plan {
	return &model.Plan{
		PlanID:                     "PLAN-001",
		ClientID:                   "client-a",
		TicketID:                   "TICKET-001",
		Status:                     model.PlanStatusApproved,
		CanarySize:                 5,
		Batches:                    []int{30, 30},
		DeviceCount:                65,
		EstimatedDurationHours:     6,
		HealthCheckIntervalMinutes: 10,
		RollbackThresholdPercent:   5,
	}
}

type stubSFN struct {
	started *sfn.StartExecutionInput
	err     error
}

func (s *stubSFN) StartExecution(_ context.Context, in *sfn.StartExecutionInput, _ ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.started = in
	return &sfn.StartExecutionOutput{
		ExecutionArn: aws.String("arn:aws:states:us-east-2:000000000000:execution:patch:run-1"),
	}, nil
}

func (s *stubSFN) DescribeExecution(_ context.Context, in *sfn.DescribeExecutionInput, _ ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error) {
	start := time.Date(2026, 8, 31, 1, 0, 0, 0, time.UTC)
	return &sfn.DescribeExecutionOutput{
		ExecutionArn: in.ExecutionArn,
		Status:       "RUNNING",
		StartDate:    &start,
	}, nil
}

func TestStepFunctionsStartRecordsRun(t *testing.T) {
	stub := &stubSFN{}
	runs := store.NewMemory()
	o := NewStepFunctions(stub, "arn:aws:states:us-east-2:000000000000:stateMachine:patch", runs)

	runID, err := o.Start(context.Background(), testPlan())
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.NotNil(t, stub.started)
	assert.Equal(t, "patch-run-PLAN-001", aws.ToString(stub.started.Name))
	assert.Contains(t, aws.ToString(stub.started.Input), `"plan_id":"PLAN-001"`)

	run, err := runs.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInProgress, run.Status)
	assert.Equal(t, "canary", run.CurrentBatch)
	require.Len(t, run.Progress, 3)
	assert.Equal(t, "canary", run.Progress[0].Name)
	assert.Equal(t, "batch_1", run.Progress[1].Name)
	assert.Equal(t, "batch_2", run.Progress[2].Name)
	assert.Equal(t, 30, run.Progress[2].Devices)
}

func TestStepFunctionsStartPropagatesError(t *testing.T) {
	o := NewStepFunctions(&stubSFN{err: fmt.Errorf("states unavailable")}, "arn", store.NewMemory())

	_, err := o.Start(context.Background(), testPlan())
	assert.Error(t, err)
}

func TestStepFunctionsStatus(t *testing.T) {
	o := NewStepFunctions(&stubSFN{}, "arn", store.NewMemory())

	state, err := o.Status(context.Background(), "arn:aws:states:us-east-2:000000000000:execution:patch:run-1")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", state.Status)
	assert.False(t, state.StartedAt.IsZero())
	assert.Nil(t, state.StoppedAt)
}

func TestLocalStartAndStatus(t *testing.T) {
	runs := store.NewMemory()
	o := NewLocal(runs)
	ctx := context.Background()

	runID, err := o.Start(ctx, testPlan())
	require.NoError(t, err)

	run, err := runs.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusInProgress, run.Progress[0].Status)
	assert.Equal(t, model.PhaseStatusQueued, run.Progress[1].Status)

	state, err := o.Status(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInProgress, state.Status)

	_, err = o.Status(ctx, "PATCHRUN-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type stubSSM struct {
	failFor map[string]bool
	offline map[string]bool
	sent    []string
}

func (s *stubSSM) SendCommand(_ context.Context, in *ssm.SendCommandInput, _ ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	id := in.InstanceIds[0]
	if s.failFor[id] {
		return nil, fmt.Errorf("instance %s not connected", id)
	}
	s.sent = append(s.sent, id)
	return &ssm.SendCommandOutput{
		Command: &ssmtypes.Command{CommandId: aws.String("cmd-" + id)},
	}, nil
}

func (s *stubSSM) DescribeInstanceInformation(_ context.Context, in *ssm.DescribeInstanceInformationInput, _ ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error) {
	id := in.Filters[0].Values[0]
	if s.failFor[id] {
		return nil, fmt.Errorf("ssm unavailable")
	}
	status := ssmtypes.PingStatusOnline
	if s.offline[id] {
		status = ssmtypes.PingStatusConnectionLost
	}
	return &ssm.DescribeInstanceInformationOutput{
		InstanceInformationList: []ssmtypes.InstanceInformation{{PingStatus: status}},
	}, nil
}

func TestExecuteBatchCountsFailures(t *testing.T) {
	stub := &stubSSM{failFor: map[string]bool{"dev-002": true}}
	e := NewBatchExecutor(stub)

	result := e.ExecuteBatch(context.Background(), "batch-1", []string{"dev-001", "dev-002", "dev-003"})

	assert.Equal(t, 3, result.DeviceCount)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "executing", result.DeviceResults["dev-001"].Status)
	assert.Equal(t, "failed", result.DeviceResults["dev-002"].Status)
	assert.Equal(t, []string{"dev-001", "dev-003"}, stub.sent)
}

func TestCheckBatchHealthProceedDecision(t *testing.T) {
	stub := &stubSSM{offline: map[string]bool{"dev-003": true}}
	e := NewBatchExecutor(stub)

	// 2 of 3 healthy = 66.7%, below a 95% threshold.
	result := e.CheckBatchHealth(context.Background(), "batch-1", []string{"dev-001", "dev-002", "dev-003"}, 95)
	assert.Equal(t, 2, result.Healthy)
	assert.Equal(t, 1, result.Unhealthy)
	assert.False(t, result.Proceed)
	assert.InDelta(t, 66.7, result.HealthPercent, 0.1)

	// Same fleet against a 50% threshold proceeds.
	result = e.CheckBatchHealth(context.Background(), "batch-1", []string{"dev-001", "dev-002", "dev-003"}, 50)
	assert.True(t, result.Proceed)
}

func TestCheckBatchHealthEmptyWave(t *testing.T) {
	e := NewBatchExecutor(&stubSSM{})
	result := e.CheckBatchHealth(context.Background(), "canary", nil, 95)
	assert.Equal(t, 0.0, result.HealthPercent)
	assert.False(t, result.Proceed)
}

func TestRollbackBatch(t *testing.T) {
	stub := &stubSSM{}
	e := NewBatchExecutor(stub)

	result := e.RollbackBatch(context.Background(), "batch-1", []string{"dev-001"})
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, "rolling_back", result.DeviceResults["dev-001"].Status)
}
