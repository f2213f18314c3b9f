package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one generate, dispatch and sweep pass and exit",
	Long: `Runs a single scheduler tick, for deployments where an external
scheduler (cron, a Kubernetes CronJob) drives the engine instead of the
in-process worker. The tick report is printed as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		report := a.worker().RunTick(cmd.Context())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)
}
