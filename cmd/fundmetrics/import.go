package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/trogers1052/fund-metrics/internal/store"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Append NAV records from a CSV file to the store",
	Long: `Reads a CSV in the local store layout (Code,Name,TradingDay,UnitNAV,CumNAV,Return)
and appends the records not yet stored.

Return is read as the source's reported change in percent (1.25 means 1.25%),
not as a fractional daily return. Files whose Return column holds derived
fractional returns import with those values misread as percentages.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open import file")
		}
		defer f.Close()

		records, err := store.ReadCSV(f)
		if err != nil {
			log.Fatal().Err(err).Str("file", args[0]).Msg("failed to read import file")
		}

		st, err := openStore()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open store")
		}
		defer st.Close()

		n, err := st.AppendBatch(context.Background(), records)
		if err != nil {
			log.Error().Err(err).Str("file", args[0]).Msg("import failed")
			st.Close()
			os.Exit(1)
		}
		log.Info().Str("file", args[0]).Int("records", len(records)).Int("inserted", n).Msg("import complete")
	},
}
