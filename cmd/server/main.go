package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Adaptive reminder scheduling and delivery service",
	Long: `nudge generates study reminders from deadlines, inactivity and learned
habits, delivers them as Web Push notifications and learns from how
they are acted on.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
