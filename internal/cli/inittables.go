package cli

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/patchpilot-io/patchpilot/internal/config"
	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/store"
)

var initTablesCmd = &cobra.Command{
	Use:   "init-tables",
	Short: "Create the DynamoDB tables if they do not exist",
	RunE:  runInitTables,
}

func runInitTables(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx := cmd.Context()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	st := store.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.PlansTable, cfg.RunsTable)
	if err := st.EnsureTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	fmt.Printf("Tables ready: %s, %s\n", cfg.PlansTable, cfg.RunsTable)
	return nil
}
