package main

import (
	"facewatch/internal/app"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run capture, recognition, alerts and the web interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		return application.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
