package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"github.com/patchpilot-io/patchpilot/internal/advisor"
	"github.com/patchpilot-io/patchpilot/internal/agent"
	"github.com/patchpilot-io/patchpilot/internal/config"
	"github.com/patchpilot-io/patchpilot/internal/inventory"
	"github.com/patchpilot-io/patchpilot/internal/kpi"
	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/metrics"
	"github.com/patchpilot-io/patchpilot/internal/orchestrator"
	"github.com/patchpilot-io/patchpilot/internal/server"
	"github.com/patchpilot-io/patchpilot/internal/store"
	"github.com/patchpilot-io/patchpilot/internal/ticket"
)

var serveLocal bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the PatchPilot API server",
	Long: `Start the webhook ingress and dashboard API.

With --local the server runs entirely in-process: in-memory store, static
plan advice, mock inventory and a local execution orchestrator. Without it
the server uses DynamoDB, Bedrock, Step Functions, Systems Manager and
CloudWatch.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveLocal, "local", false, "Run without AWS dependencies (demo mode)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := kpi.Policy{
		SuccessThresholdPercent: cfg.SuccessThresholdPercent,
		BaselineExposureHours:   cfg.BaselineExposureHours,
	}

	opts := server.Options{
		Addr: cfg.ListenAddr,
		KPIs: kpi.NewAggregator(policy),
	}

	if serveLocal {
		mem := store.NewMemory()
		inv := inventory.NewMock()
		tickets := ticket.NewManager(inv)

		opts.Store = mem
		opts.Agent = agent.New(advisor.Static{}, inv, mem, tickets)
		opts.Orchestrator = orchestrator.NewLocal(mem)
		opts.Inventory = inv
		opts.Tickets = tickets
		logging.Info("running in local mode, no AWS calls will be made")
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return fmt.Errorf("failed to load AWS configuration: %w", err)
		}

		st := store.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.PlansTable, cfg.RunsTable)

		var inv inventory.Client
		if cfg.SuperOpsMock {
			inv = inventory.NewMock()
		} else {
			inv = inventory.NewLive(cfg.SuperOpsAPIURL, cfg.SuperOpsAPIKey)
		}
		tickets := ticket.NewManager(inv)

		var orch orchestrator.ExecutionOrchestrator
		if cfg.StateMachineARN != "" {
			orch = orchestrator.NewStepFunctions(sfn.NewFromConfig(awsCfg), cfg.StateMachineARN, st)
		} else {
			logging.Warn("STEP_FUNCTIONS_ARN not set, using local orchestrator")
			orch = orchestrator.NewLocal(st)
		}

		adv := advisor.NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, cfg.AdvisorTimeout)

		opts.Store = st
		opts.Agent = agent.New(adv, inv, st, tickets)
		opts.Orchestrator = orch
		opts.Batches = orchestrator.NewBatchExecutor(ssm.NewFromConfig(awsCfg))
		opts.Inventory = inv
		opts.Tickets = tickets
		opts.Metrics = metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg))
	}

	return server.New(opts).Run(ctx)
}
