package main

import (
	"os"

	"github.com/spf13/cobra"

	"grievance/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "grievctl",
		Short: "Operate the grievance service from the command line",
		Long: `grievctl runs escalation scans, duplicate checks and admin housekeeping
against the same database as the grievance API server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.ScanCmd())
	rootCmd.AddCommand(cli.DigestCmd())
	rootCmd.AddCommand(cli.CheckDuplicateCmd())
	rootCmd.AddCommand(cli.SLACmd())
	rootCmd.AddCommand(cli.AdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
