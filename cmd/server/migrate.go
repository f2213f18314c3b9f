package main

import (
	"nudge/internal/database"

	"github.com/spf13/cobra"
)

var withCollaborators bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the reminder tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := database.Migrate(a.db); err != nil {
			return err
		}
		if withCollaborators {
			if err := database.MigrateCollaborators(a.db); err != nil {
				return err
			}
		}
		a.log.Info("database migrated", "collaborators", withCollaborators)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&withCollaborators, "with-collaborators", false, "also create the account and assignment tables (local development)")
	rootCmd.AddCommand(migrateCmd)
}
