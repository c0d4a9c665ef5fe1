package main

import (
	"fmt"
	"os"

	"github.com/lamanada/tickets-api/internal/config"
	"github.com/lamanada/tickets-api/internal/database"
	"github.com/lamanada/tickets-api/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "tickets-api",
		Short:   "La Manada registration, payment and check-in API",
		Version: Version,
		// Running the bare binary starts the server.
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel)

			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			logrus.WithField("driver", cfg.DatabaseDriver).Info("schema up to date")
			return nil
		},
	}
}
