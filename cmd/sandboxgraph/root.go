// Command sandboxgraph runs the module-graph bundler core as a standalone
// server or local dev-loop tool. Grounded on templar/cmd's flat cobra
// package layout (rootCmd, Execute, cobra.OnInitialize(initConfig)), with
// the TEMPLAR_ prefix and .templar.yml config file swapped for
// SANDBOXGRAPH_ and .sandboxgraph.yml.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sandboxgraph/internal/config"
)

var cfgFile string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "sandboxgraph",
	Short: "In-browser module graph bundler core",
	Long: `sandboxgraph tracks a sandbox's file set as a dependency graph, transpiles
and evaluates it through pluggable loader and preset collaborators, and
serves host events (success/error/resize) over a WebSocket hub.

Configuration is read in this order of precedence:
  1. --config flag
  2. SANDBOXGRAPH_CONFIG_FILE environment variable
  3. individual SANDBOXGRAPH_<SECTION>_<OPTION> environment variables
  4. .sandboxgraph.yml in the current directory

Examples:
  sandboxgraph serve                 # run the host server + websocket hub
  sandboxgraph watch ./src           # local dev loop, no server
  sandboxgraph build ./src /index.js # one-shot compile`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .sandboxgraph.yml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}

func initConfig() {
	config.BindDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envFile := os.Getenv("SANDBOXGRAPH_CONFIG_FILE"); envFile != "" {
		viper.SetConfigFile(envFile)
	} else {
		viper.SetConfigName(".sandboxgraph")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "sandboxgraph: failed to read config file:", err)
		}
	}
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
