package main

import (
	"context"
	"time"

	"github.com/campabbey/camp-api/config"
	"github.com/campabbey/camp-api/repositories/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users and audit_logs tables if they do not exist.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		cfg, err := config.New(ctx)
		if err != nil {
			return err
		}
		logger, err := initLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		factory, err := postgres.NewRepositoryFactory(cfg, logger)
		if err != nil {
			return err
		}
		defer factory.Close()

		if err := factory.InitSchema(ctx); err != nil {
			return err
		}
		cmd.Println("schema is up to date")
		return nil
	},
}
