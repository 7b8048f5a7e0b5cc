package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var driverFlag string

	var sqliteFlag string

	ctx := newCommandContext(&driverFlag, &sqliteFlag, os.Stderr)

	rootCmd := &cobra.Command{
		Use:           "highlights",
		Short:         "Extract video highlights and answer questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Store driver: postgres or sqlite (default STORE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&sqliteFlag, "sqlite", "", "SQLite database path (default SQLITE_PATH)")

	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newAskCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))

	return rootCmd
}
