package main

import (
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/trogers1052/fund-metrics/internal/config"
	"github.com/trogers1052/fund-metrics/internal/logger"
	"github.com/trogers1052/fund-metrics/internal/metrics"
	"github.com/trogers1052/fund-metrics/internal/store"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Logging level: debug, info, warn, error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Human readable console logs (env LOG_PRETTY)")
	rootCmd.PersistentFlags().BoolP("local", "l", false, "Use the local CSV file store instead of the database (env FUNDMETRICS_LOCAL)")
}

var rootCmd = &cobra.Command{
	Use:           "fundmetrics",
	Short:         "Fund NAV return and risk metrics",
	Long:          `Collects daily fund NAV histories into a duplicate-free store and reports total, annual and monthly risk/return metrics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		log = logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
		return nil
	},
}

// applyFlags overrides configuration with flags set on the command line
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-pretty") {
		c.Log.Pretty, _ = flags.GetBool("log-pretty")
	}
	if flags.Changed("local") {
		c.Store.Local, _ = flags.GetBool("local")
	}
	if f := flags.Lookup("top"); f != nil && f.Changed {
		c.Run.TopN, _ = flags.GetInt("top")
	}
	if f := flags.Lookup("output"); f != nil && f.Changed {
		c.Run.OutputDir, _ = flags.GetString("output")
	}
	if f := flags.Lookup("export"); f != nil && f.Changed {
		c.Run.ExportDir, _ = flags.GetString("export")
	}
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		addr, _ := flags.GetString("addr")
		if host, port, err := net.SplitHostPort(addr); err == nil {
			c.Server.Host, c.Server.Port = host, port
		}
	}
}

// openStore opens the configured backend
func openStore() (store.FundStore, error) {
	return store.New(cfg, log)
}

// newAggregator builds the aggregator from the metrics configuration
func newAggregator() (*metrics.Aggregator, error) {
	method, err := metrics.ParseDrawdownMethod(cfg.Metrics.DrawdownMethod)
	if err != nil {
		return nil, err
	}
	return metrics.NewAggregator(cfg.Metrics.RiskFreeRate, method, log), nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
