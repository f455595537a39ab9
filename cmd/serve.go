package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/warranty-orders/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP upload API",
	Long: `Serve accepts spreadsheet uploads over HTTP, validates them and returns the
summary as JSON. Uploads posted with ?load=true are loaded into the configured
store.

Endpoints:
  GET  /healthz
  POST /api/uploads
  GET  /api/orders/count
  GET  /api/orders/sample?limit=N`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		loader, closeStore, err := openLoader(ctx, appConfig, logger, appConfig.Store.ClearExisting)
		if err != nil {
			return err
		}
		defer closeStore()

		return server.New(appConfig, loader, logger).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.listen_addr)")
	_ = viper.BindPFlag("server.listen_addr", serveCmd.Flags().Lookup("addr"))
}
