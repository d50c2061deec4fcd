package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "camp-api",
	Short:         "Camp registration API with role-based access control.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, usersCmd)
}
