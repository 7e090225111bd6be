package cmd

import (
	"fmt"
	"os"

	"github.com/aqlanhadi/stmtscan/config"
	"github.com/aqlanhadi/stmtscan/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "stmtscan [filename]",
		Short: "Extract transactions and recurring payments from bank statements",
		Long: `stmtscan is a utility to extract structured data out of your bank statements
and to flag the recurring payments hidden in them.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				viper.Set("target", args[0])
				return runExtract(extractCmd, nil)
			}
			return cmd.Help()
		},
	}
)

// Execute runs the root command. Failures print one line and exit 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default is ./.stmtscan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogging() {
	log.Logger = logger.New(os.Stderr, verbose)
}

func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
