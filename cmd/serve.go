package cmd

import (
	"os"

	"github.com/aqlanhadi/stmtscan/api"
	"github.com/aqlanhadi/stmtscan/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long:  `Starts the HTTP API server that accepts statements and returns extracted data as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		srvLog := logger.NewWithWriter(os.Stdout).Level(level)
		server := api.New(api.ConfigFromViper(srvLog))
		return server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "", "Port to run the API server on (default from config)")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
