// Package cli wires the relays and the client commands into one binary.
package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"corpanalyst/config"
	"corpanalyst/utils"
)

var version = "dev"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "corpanalyst",
	Short: "Company analysis relays and client",
	Long: `corpanalyst runs the two relays behind the company analysis form:
the analysis assistant, which answers questions with a web-grounded model,
and the Yahoo Finance proxy, which resolves ISINs to companies.
It also ships client commands that talk to both relays.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n%s", rec, debug.Stack())
			os.Exit(1)
		}
	}()

	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env files, the optional config file and the environment
// for a relay whose default port is defaultPort
func loadConfig(defaultPort int) (*config.Config, *utils.Logger, error) {
	envFile, err := utils.LoadEnvWithFallback()
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(cfgFile, defaultPort)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if envFile != "" {
		logger.Debug().Str("file", envFile).Msg("Loaded environment file")
	}
	return cfg, logger, nil
}
