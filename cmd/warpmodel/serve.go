package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/warpmodel/bootstrap"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the warpmodel HTTP server.

The server will:
  - Load configuration from warpmodel.yaml (or --config)
  - Or load configuration from WARP_* environment variables
  - Compile every model file under models.dir
  - Create missing tables and columns
  - Serve /classes/{className} and /_schema

Examples:
  warpmodel serve
  warpmodel serve --config /etc/warpmodel/config.yaml
  WARP_MODELS_DIR=./models WARP_DATABASE_DSN=data.db warpmodel serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload the log level when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Watch:      hotReload,
	})
	if err != nil {
		return err
	}
	return app.Run()
}
