// Command tenantctl runs operator tasks against the booking database.
package main

import (
	"fmt"
	"os"

	"booking-app/config"
	"booking-app/database"
	"booking-app/internal/infra/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Operator tool for the booking platform",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(bookingsCmd())
	rootCmd.AddCommand(agentCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect loads the environment and opens the database without migrating.
func connect() (*gorm.DB, error) {
	config.LoadEnv()
	if err := logger.Init(config.LOG_LEVEL, "console", "tenantctl"); err != nil {
		return nil, err
	}
	return database.Open(config.DB_URL)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d models\n", len(database.Models()))
			return nil
		},
	}
}
