package cli

import (
	"log"

	"notes-assistant/app"
	"notes-assistant/pkg/config"

	"github.com/spf13/cobra"
)

func newServeCmd(_ *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return writeErr(cmd, err)
			}

			server, err := app.NewServer(cmd.Context(), cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() {
				if err := server.Close(); err != nil {
					log.Printf("Failed to close server: %v", err)
				}
			}()

			return server.Start(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from SERVER_HOST and SERVER_PORT)")
	return cmd
}
