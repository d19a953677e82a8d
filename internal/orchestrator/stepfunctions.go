package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
	"github.com/patchpilot-io/patchpilot/internal/store"
)

// SFNAPI is the slice of the Step Functions client the orchestrator uses.
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// StepFunctions drives plan execution through a Step Functions state machine
// and records the run in the store so the dashboard sees it immediately.
type StepFunctions struct {
	client          SFNAPI
	stateMachineARN string
	runs            store.RunStore
}

// NewStepFunctions returns the live orchestrator.
func NewStepFunctions(client SFNAPI, stateMachineARN string, runs store.RunStore) *StepFunctions {
	return &StepFunctions{client: client, stateMachineARN: stateMachineARN, runs: runs}
}

// executionInput is the state machine input document.
type executionInput struct {
	PlanID                     string   `json:"plan_id"`
	TicketID                   string   `json:"ticket_id"`
	ClientID                   string   `json:"client_id"`
	CanarySize                 int      `json:"canary_size"`
	Batches                    []int    `json:"batches"`
	DeviceIDs                  []string `json:"device_ids"`
	HealthCheckIntervalMinutes int      `json:"health_check_interval_minutes"`
	RollbackThresholdPercent   float64  `json:"rollback_threshold_percent"`
	EstimatedDurationHours     float64  `json:"estimated_duration_hours"`
	Timestamp                  string   `json:"timestamp"`
}

func (s *StepFunctions) Start(ctx context.Context, plan *model.Plan) (string, error) {
	input, err := json.Marshal(executionInput{
		PlanID:                     plan.PlanID,
		TicketID:                   plan.TicketID,
		ClientID:                   plan.ClientID,
		CanarySize:                 plan.CanarySize,
		Batches:                    plan.Batches,
		DeviceIDs:                  plan.DevicesAffected,
		HealthCheckIntervalMinutes: plan.HealthCheckIntervalMinutes,
		RollbackThresholdPercent:   plan.RollbackThresholdPercent,
		EstimatedDurationHours:     plan.EstimatedDurationHours,
		Timestamp:                  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal execution input: %w", err)
	}

	out, err := s.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(s.stateMachineARN),
		Name:            aws.String("patch-run-" + plan.PlanID),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start execution for plan %s: %w", plan.PlanID, err)
	}
	runID := aws.ToString(out.ExecutionArn)

	now := time.Now().UTC()
	estimated := now.Add(time.Duration(plan.EstimatedDurationHours * float64(time.Hour)))
	run := &model.Run{
		RunID:               runID,
		PlanID:              plan.PlanID,
		ClientID:            plan.ClientID,
		Status:              model.RunStatusInProgress,
		CurrentBatch:        "canary",
		Progress:            phaseNames(plan),
		StartedAt:           now,
		EstimatedCompletion: &estimated,
	}
	if err := s.runs.PutRun(ctx, run); err != nil {
		return "", fmt.Errorf("execution started but run record failed: %w", err)
	}

	logging.Event("execution_started",
		"run_id", runID,
		"plan_id", plan.PlanID,
		"ticket_id", plan.TicketID)
	return runID, nil
}

func (s *StepFunctions) Status(ctx context.Context, runID string) (*RunState, error) {
	out, err := s.client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(runID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe execution %s: %w", runID, err)
	}

	state := &RunState{
		RunID:  runID,
		Status: string(out.Status),
		Output: aws.ToString(out.Output),
	}
	if out.StartDate != nil {
		state.StartedAt = *out.StartDate
	}
	if out.StopDate != nil {
		stopped := *out.StopDate
		state.StoppedAt = &stopped
	}
	return state, nil
}
