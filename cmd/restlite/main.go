// Package main is the entry point for the restlite CLI.
package main

import (
	"fmt"
	"os"

	"github.com/restlite/restlite/cmd/restlite/commands"
	"github.com/restlite/restlite/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rootCmd := &cobra.Command{
		Use:     "restlite",
		Short:   "Query-builder database layer over a snapshot-backed SQLite engine",
		Version: commands.VersionString(),
	}

	var flags commands.GlobalFlags
	rootCmd.PersistentFlags().StringVar(&flags.DatabasePath, "db", cfg.DatabasePath, "snapshot file path, or :memory:")
	rootCmd.PersistentFlags().BoolVar(&flags.ReadOnly, "read-only", cfg.ReadOnly, "open the database without write access")
	rootCmd.PersistentFlags().BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(commands.NewQueryCommand(&flags))
	rootCmd.AddCommand(commands.NewExecCommand(&flags))
	rootCmd.AddCommand(commands.NewTablesCommand(&flags))
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd.Execute()
}
