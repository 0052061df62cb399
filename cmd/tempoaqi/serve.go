package main

import (
	"github.com/spf13/cobra"

	"github.com/chrissnell/tempoaqi/internal/app"
	"github.com/chrissnell/tempoaqi/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST server until SIGINT or SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgData, err := setup()
		if err != nil {
			return err
		}

		log.Infow("starting tempoaqi",
			"listen_addr", cfgData.Server.ListenAddr,
			"port", cfgData.Server.Port,
			"products", len(cfgData.Products))

		return app.New(cfgData, log.GetSugaredLogger()).Run(cmd.Context())
	},
}
