// Package cli implements the swapxd command line.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/LeJamon/swapx/internal/config"
	"github.com/LeJamon/swapx/internal/log"
)

var (
	// Global flags
	configFile string
	debug      bool
	pretty     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swapxd",
	Short: "swapx - rate-oracle liquidity ledger daemon",
	Long: `swapxd keeps per-token reserves and per-account contributions of a
shared liquidity pool, executes swaps at oracle rates and serves the ledger
over JSON-RPC, WebSocket and gRPC.`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (default ./"+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human readable console logs")
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if pretty {
		cfg.Logging.Pretty = true
	}
	logger := log.New(log.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	return cfg, logger, nil
}
