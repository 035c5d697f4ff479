package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/trogers1052/fund-metrics/internal/cache"
	"github.com/trogers1052/fund-metrics/internal/eastmoney"
	"github.com/trogers1052/fund-metrics/internal/kafka"
	"github.com/trogers1052/fund-metrics/internal/pipeline"
	"github.com/trogers1052/fund-metrics/internal/report"
)

func init() {
	runCmd.Flags().IntP("top", "n", 20, "Number of top-ranked funds to ingest into an empty store (env FUNDMETRICS_TOP_N)")
	runCmd.Flags().StringP("output", "o", "data", "Directory for annual.csv and monthly.csv (env FUNDMETRICS_OUTPUT_DIR)")
	runCmd.Flags().String("export", "", "Directory for raw per-fund CSV exports, empty to disable (env FUNDMETRICS_EXPORT_DIR)")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load or ingest NAV histories and write metric reports",
	Long: `Loads every stored NAV record. When the store is empty the top funds are
fetched from eastmoney and appended first. Annual (total and per year) and
monthly summaries are then written to the output directory.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open store")
		}
		defer st.Close()

		agg, err := newAggregator()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid metrics configuration")
		}

		var src pipeline.Source = eastmoney.NewClient(
			eastmoney.WithListURL(cfg.Source.ListURL),
			eastmoney.WithHistoryURL(cfg.Source.HistoryURL),
			eastmoney.WithPageSize(cfg.Source.PageSize),
			eastmoney.WithRateLimit(cfg.Source.RequestsPerSecond),
			eastmoney.WithTimeout(cfg.Source.Timeout),
			eastmoney.WithLogger(log),
		)
		if cfg.Redis.Enabled {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()
			src = cache.NewHistoryCache(src, rdb, cfg.Redis.TTL, log)
		}

		sinks := report.MultiSink{report.NewCSVWriter(log)}
		if cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
			defer producer.Close()
			sinks = append(sinks, producer)
		}

		runner := pipeline.NewRunner(st, src, agg, sinks, pipeline.Options{
			TopN:      cfg.Run.TopN,
			OutputDir: cfg.Run.OutputDir,
			ExportDir: cfg.Run.ExportDir,
		}, log)

		if err := runner.Run(ctx); err != nil {
			log.Error().Err(err).Msg("run failed")
			st.Close()
			os.Exit(1)
		}
		log.Info().Str("output", cfg.Run.OutputDir).Msg("run complete")
	},
}
