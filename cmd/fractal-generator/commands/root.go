package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/UntitledError-09/fractal-generator/src/logging"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fractal-generator",
	Short: "A GPU-style Mandelbrot renderer",
	Long: `Fractal-generator renders escape-time fractals through a compute,
transfer and present pipeline, managing device buffers, images and
synchronization the way a Vulkan renderer does.`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fractal-generator/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home + "/.fractal-generator")
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("FRACTAL")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()

	if initErr := logging.Init(viper.GetString("log-level"), viper.GetString("log-file"), true); initErr != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", initErr)
		os.Exit(1)
	}

	if err == nil {
		logging.Get().WithField("file", viper.ConfigFileUsed()).Debug("loaded config file")
	}
}
