package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/artpar/warpmodel/bootstrap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or extend the tables of every model",
	Long: `Compile every model file and create the backing tables.

Missing tables are created and missing columns are added. Columns are never
dropped or altered.

Examples:
  warpmodel migrate
  WARP_DATABASE_DSN=data.db warpmodel migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// runMigrate relies on bootstrap.New, which migrates before returning.
func runMigrate(out io.Writer) error {
	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile})
	if err != nil {
		return err
	}
	defer app.Shutdown()

	for _, def := range app.Runtime.Registry().List() {
		fmt.Fprintf(out, "  %s %s\n", checkMark, def.Source())
	}
	fmt.Fprintf(out, "\nDatabase %s is up to date\n", app.Config.Database.DSN)
	return nil
}
