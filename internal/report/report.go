// Package report writes metric summaries to their outputs.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trogers1052/fund-metrics/internal/models"
	"github.com/trogers1052/fund-metrics/internal/store"
)

// Sink receives the summaries of one granularity once per run
type Sink interface {
	Write(ctx context.Context, g models.Granularity, outputDir string, summaries []models.MetricSummary) error
}

// Columns is the header of a summary report
var Columns = []string{
	"Code", "Name", "Period", "StartDate", "EndDate", "TradingDays",
	"TotalReturn", "AnnualizedReturn", "SharpeRatio", "MaxDrawdown",
}

// FileName returns the report file name for a granularity
func FileName(g models.Granularity) string {
	return string(g) + ".csv"
}

// CSVWriter writes one long-format CSV per granularity, one row per fund
// and period
type CSVWriter struct {
	log zerolog.Logger
}

// NewCSVWriter creates a CSV report sink
func NewCSVWriter(log zerolog.Logger) *CSVWriter {
	return &CSVWriter{log: log}
}

// Write replaces <outputDir>/<granularity>.csv
func (w *CSVWriter) Write(ctx context.Context, g models.Granularity, outputDir string, summaries []models.MetricSummary) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, FileName(g))

	err := writeAtomic(path, func(f *os.File) error {
		cw := csv.NewWriter(f)
		if err := cw.Write(Columns); err != nil {
			return err
		}
		for _, s := range summaries {
			if err := cw.Write(row(s)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("failed to write %s report: %w", g, err)
	}

	w.log.Info().Str("granularity", string(g)).Str("path", path).Int("rows", len(summaries)).Msg("wrote report")
	return nil
}

func row(s models.MetricSummary) []string {
	sharpe := ""
	if s.SharpeRatio != nil {
		sharpe = formatFloat(*s.SharpeRatio)
	}
	return []string{
		s.Code,
		s.Name,
		s.Period.String(),
		s.StartDate.Format(models.DateLayout),
		s.EndDate.Format(models.DateLayout),
		strconv.Itoa(s.TradingDays),
		formatFloat(s.TotalReturn),
		formatFloat(s.AnnualizedReturn),
		sharpe,
		formatFloat(s.MaxDrawdown),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MultiSink fans a report out to several sinks, stopping at the first error
type MultiSink []Sink

// Write calls every sink in order
func (m MultiSink) Write(ctx context.Context, g models.Granularity, outputDir string, summaries []models.MetricSummary) error {
	for _, s := range m {
		if err := s.Write(ctx, g, outputDir, summaries); err != nil {
			return err
		}
	}
	return nil
}

// ExportFund writes one fund's raw records to <dir>/<code>_<name>.csv in the
// store file layout and returns the path
func ExportFund(dir string, fund models.Fund, records []models.NAVRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", fund.Code, sanitize(fund.Name)))

	err := writeAtomic(path, func(f *os.File) error {
		return store.WriteCSV(f, records)
	})
	if err != nil {
		return "", fmt.Errorf("failed to export %s: %w", fund.Code, err)
	}
	return path, nil
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

func sanitize(name string) string {
	return unsafeChars.Replace(strings.TrimSpace(name))
}

// writeAtomic writes through a temp file renamed over path
func writeAtomic(path string, fill func(f *os.File) error) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := fill(tmpFile); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
