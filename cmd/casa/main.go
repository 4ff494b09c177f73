package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
)

var (
	configFile string
	stateFile  string
	stateType  string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "casa",
		Short:         "scenario analysis and calibration for basin models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "scenario.yaml", "scenario file (yaml)")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state", "", "scenario state file, defaults to <location>/casa-state.<type>")
	rootCmd.PersistentFlags().StringVar(&stateType, "state-type", "txt", "state file type (txt or bin)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the scenario file")

	rootCmd.AddCommand(
		validateCommand(),
		doeCommand(),
		proxyCommand(),
		mcCommand(),
		calibrateCommand(),
		serveCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
