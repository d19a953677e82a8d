package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "patchpilot",
	Short: "AI-assisted patch orchestration backend",
	Long: `PatchPilot turns vulnerability findings into phased patch deployment plans.

Inbound webhooks produce canary-then-batch plans, a technician approves or
rejects them from the dashboard, and approved plans are handed to the
execution engine. Run history feeds the dashboard KPIs.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initTablesCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)
}
