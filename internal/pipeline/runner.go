// Package pipeline runs one batch: load or ingest NAV records, then report
// annual and monthly metrics.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trogers1052/fund-metrics/internal/metrics"
	"github.com/trogers1052/fund-metrics/internal/models"
	"github.com/trogers1052/fund-metrics/internal/report"
	"github.com/trogers1052/fund-metrics/internal/returns"
	"github.com/trogers1052/fund-metrics/internal/store"
)

// Source provides fund listings and raw NAV histories
type Source interface {
	ListTopFunds(ctx context.Context, n int) ([]models.Fund, error)
	// FetchHistory returns observations ascending by trading day, one per day
	FetchHistory(ctx context.Context, code string) ([]models.Observation, error)
}

// SourceUnavailableError reports a fund whose history could not be fetched
type SourceUnavailableError struct {
	Code string
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable for %s: %v", e.Code, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Stage names a step of a run
type Stage string

// Run stages, in order
const (
	StageLoad    Stage = "LOAD"
	StageIngest  Stage = "INGEST"
	StageAnnual  Stage = "ANNUAL"
	StageMonthly Stage = "MONTHLY"
)

// Options holds the run parameters
type Options struct {
	TopN      int
	OutputDir string
	// ExportDir receives one raw CSV per ingested fund; empty disables it
	ExportDir string
}

// Runner drives one batch run
type Runner struct {
	store      store.FundStore
	source     Source
	aggregator *metrics.Aggregator
	sink       report.Sink
	opts       Options
	log        zerolog.Logger
}

// NewRunner creates a Runner
func NewRunner(st store.FundStore, src Source, agg *metrics.Aggregator, sink report.Sink, opts Options, log zerolog.Logger) *Runner {
	return &Runner{
		store:      st,
		source:     src,
		aggregator: agg,
		sink:       sink,
		opts:       opts,
		log:        log,
	}
}

// Run loads the store, ingests from the source when it is empty, and hands
// annual then monthly summaries to the sink. Storage and sink failures end
// the run; failures confined to one fund only drop that fund.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().Str("stage", string(StageLoad)).Msg("loading store")
	grouped, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	if len(grouped) == 0 {
		r.log.Warn().Str("stage", string(StageIngest)).Msg("empty store, ingesting from source")
		if _, err := r.Ingest(ctx); err != nil {
			return err
		}
		if grouped, err = r.store.LoadAll(ctx); err != nil {
			return fmt.Errorf("failed to reload store: %w", err)
		}
	}

	for _, step := range []struct {
		stage Stage
		g     models.Granularity
	}{
		{StageAnnual, models.GranularityAnnual},
		{StageMonthly, models.GranularityMonthly},
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		summaries := r.Summarize(grouped, step.g)
		r.log.Info().
			Str("stage", string(step.stage)).
			Int("funds", len(grouped)).
			Int("summaries", len(summaries)).
			Msg("writing report")
		if err := r.sink.Write(ctx, step.g, r.opts.OutputDir, summaries); err != nil {
			return fmt.Errorf("failed to write %s report: %w", step.g, err)
		}
	}
	return nil
}

// Ingest fetches the top funds and appends their histories in one batch.
// Funds whose history cannot be fetched are skipped.
func (r *Runner) Ingest(ctx context.Context) (int, error) {
	funds, err := r.source.ListTopFunds(ctx, r.opts.TopN)
	if err != nil {
		return 0, fmt.Errorf("failed to list funds: %w", err)
	}

	var candidates []models.NAVRecord
	skipped := 0
	for i, f := range funds {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		obs, err := r.source.FetchHistory(ctx, f.Code)
		if err != nil {
			skipped++
			r.log.Warn().Err(&SourceUnavailableError{Code: f.Code, Err: err}).Int("rank", i).Msg("skipping fund")
			continue
		}
		if len(obs) == 0 {
			skipped++
			r.log.Warn().Str("code", f.Code).Msg("fund has no history, skipping")
			continue
		}

		records := make([]models.NAVRecord, len(obs))
		for j, o := range obs {
			records[j] = models.NewNAVRecord(f, o)
		}
		candidates = append(candidates, records...)

		if r.opts.ExportDir != "" {
			path, err := report.ExportFund(r.opts.ExportDir, f, records)
			if err != nil {
				r.log.Warn().Err(err).Str("code", f.Code).Msg("raw export failed")
			} else {
				r.log.Debug().Str("code", f.Code).Str("path", path).Msg("exported raw history")
			}
		}
		r.log.Info().Int("rank", i).Str("code", f.Code).Str("name", f.Name).Int("records", len(records)).Msg("fetched fund")
	}

	n, err := r.store.AppendBatch(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to append ingested records: %w", err)
	}
	r.log.Info().
		Int("funds", len(funds)).
		Int("skipped", skipped).
		Int("candidates", len(candidates)).
		Int("inserted", n).
		Msg("ingest complete")
	return n, nil
}

// Summarize computes the summaries of granularity g for every fund in
// ascending code order. Funds with broken histories are logged and left out.
func (r *Runner) Summarize(grouped map[string][]models.NAVRecord, g models.Granularity) []models.MetricSummary {
	var out []models.MetricSummary
	for _, code := range store.SortedCodes(grouped) {
		summaries, err := Analyze(r.aggregator, grouped[code], g)
		if err != nil {
			r.log.Warn().Err(err).Str("code", code).Str("granularity", string(g)).Msg("dropping fund")
			continue
		}
		out = append(out, summaries...)
	}
	return out
}

// Analyze derives one fund's returns from its ascending records and
// summarizes them at granularity g
func Analyze(agg *metrics.Aggregator, records []models.NAVRecord, g models.Granularity) ([]models.MetricSummary, error) {
	if len(records) == 0 {
		return nil, nil
	}
	rets, err := returns.Compute(records)
	if err != nil {
		return nil, err
	}
	fund := models.Fund{Code: records[0].Code, Name: records[0].Name}
	return agg.SummarizeFund(fund, rets, g), nil
}
