package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patchpilot-io/patchpilot/internal/advisor"
	"github.com/patchpilot-io/patchpilot/internal/agent"
	"github.com/patchpilot-io/patchpilot/internal/config"
	"github.com/patchpilot-io/patchpilot/internal/inventory"
	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
	"github.com/patchpilot-io/patchpilot/internal/planner"
	"github.com/patchpilot-io/patchpilot/internal/store"
	"github.com/patchpilot-io/patchpilot/internal/ticket"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk the plan lifecycle end to end without AWS",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx := cmd.Context()
	mem := store.NewMemory()
	inv := inventory.NewMock()
	a := agent.New(advisor.Static{}, inv, mem, ticket.NewManager(inv))

	banner("Webhook Processing")
	plan, err := a.ProcessWebhook(ctx, planner.Request{
		TicketID:  "TICKET-001",
		ClientID:  "client-a",
		DeviceIDs: []string{"dev-001", "dev-002"},
		CVEFindings: []model.CVEFinding{
			{
				CVEID:       "CVE-2025-1234",
				Severity:    "CRITICAL",
				CVSSScore:   9.8,
				Description: "Remote code execution vulnerability",
			},
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("  Plan ID: %s\n", plan.PlanID)
	fmt.Printf("  Canary Size: %d devices\n", plan.CanarySize)
	fmt.Printf("  Batches: %v\n", plan.Batches)
	fmt.Printf("  Health Check Interval: %d minutes\n", plan.HealthCheckIntervalMinutes)
	fmt.Printf("  Rollback Threshold: %.1f%%\n", plan.RollbackThresholdPercent)
	fmt.Printf("  Estimated Duration: %.1f hours\n", plan.EstimatedDurationHours)
	fmt.Printf("  Notes: %s\n", plan.Notes)
	fmt.Printf("  Status: %s\n", plan.Status)

	banner("Device Inventory")
	devices, err := inv.GetDevices(ctx, "client-a")
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("  %s (%s)\n", d.Name, d.OS)
		fmt.Printf("    - ID: %s\n", d.ID)
		fmt.Printf("    - SLA Tier: %s\n", d.SLATier)
		fmt.Printf("    - Pending Patches: %d\n", d.PendingPatches)
		fmt.Printf("    - Critical CVEs: %d\n", d.CriticalCVEs)
	}

	banner("Ticket")
	tk, err := inv.UpdateTicket(ctx, "TICKET-001", nil)
	if err != nil {
		return err
	}
	fmt.Printf("  Ticket %s is %s, awaiting approval of %s\n", tk.ID, tk.Status, plan.PlanID)
	return nil
}

func banner(title string) {
	fmt.Printf("\n%s\nDEMO: %s\n%s\n", strings.Repeat("=", 60), title, strings.Repeat("=", 60))
}
