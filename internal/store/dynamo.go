package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client the store uses. Narrowed so
// tests can substitute a fake.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Dynamo persists plans and runs in two DynamoDB tables keyed by plan_id and
// run_id respectively. Single-row reads and writes only; consistency is
// delegated to DynamoDB.
type Dynamo struct {
	client     DynamoAPI
	plansTable string
	runsTable  string
}

// NewDynamo returns a DynamoDB-backed store over the given tables.
func NewDynamo(client DynamoAPI, plansTable, runsTable string) *Dynamo {
	return &Dynamo{client: client, plansTable: plansTable, runsTable: runsTable}
}

func (d *Dynamo) PutPlan(ctx context.Context, plan *model.Plan) error {
	item, err := attributevalue.MarshalMap(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan %s: %w", plan.PlanID, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.plansTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put plan %s: %w", plan.PlanID, err)
	}
	return nil
}

func (d *Dynamo) GetPlan(ctx context.Context, planID string) (*model.Plan, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.plansTable),
		Key:       stringKey("plan_id", planID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", planID, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var plan model.Plan
	if err := attributevalue.UnmarshalMap(out.Item, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan %s: %w", planID, err)
	}
	return &plan, nil
}

func (d *Dynamo) ListPlans(ctx context.Context) ([]*model.Plan, error) {
	var plans []*model.Plan
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.plansTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plans table: %w", err)
		}
		for _, item := range page.Items {
			var plan model.Plan
			if err := attributevalue.UnmarshalMap(item, &plan); err != nil {
				return nil, fmt.Errorf("failed to unmarshal plan item: %w", err)
			}
			plans = append(plans, &plan)
		}
	}
	return plans, nil
}

func (d *Dynamo) PutRun(ctx context.Context, run *model.Run) error {
	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.RunID, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.runsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put run %s: %w", run.RunID, err)
	}
	return nil
}

func (d *Dynamo) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.runsTable),
		Key:       stringKey("run_id", runID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var run model.Run
	if err := attributevalue.UnmarshalMap(out.Item, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &run, nil
}

func (d *Dynamo) ListRuns(ctx context.Context) ([]*model.Run, error) {
	var runs []*model.Run
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.runsTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan runs table: %w", err)
		}
		for _, item := range page.Items {
			var run model.Run
			if err := attributevalue.UnmarshalMap(item, &run); err != nil {
				return nil, fmt.Errorf("failed to unmarshal run item: %w", err)
			}
			runs = append(runs, &run)
		}
	}
	return runs, nil
}

// EnsureTables creates the plans and runs tables if they do not already
// exist. Pay-per-request billing, simple hash keys.
func (d *Dynamo) EnsureTables(ctx context.Context) error {
	if err := d.ensureTable(ctx, d.plansTable, "plan_id"); err != nil {
		return err
	}
	return d.ensureTable(ctx, d.runsTable, "run_id")
}

func (d *Dynamo) ensureTable(ctx context.Context, name, hashKey string) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err == nil {
		return nil
	}
	if !isNotFoundErr(err) {
		return fmt.Errorf("failed to describe table %s: %w", name, err)
	}

	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return nil
}

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func isNotFoundErr(err error) bool {
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}
