// Package metrics reduces return windows into risk/return summaries.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/trogers1052/fund-metrics/internal/models"
	"github.com/trogers1052/fund-metrics/internal/periods"
	"github.com/trogers1052/fund-metrics/internal/returns"
)

// DaysPerYear is the calendar-day basis for annualization
const DaysPerYear = 365

// DrawdownMethod selects how max drawdown is measured
type DrawdownMethod string

const (
	// DrawdownBaseline is min(cumNAV) - 1 against an implicit starting
	// value of 1.0. It matches historical reports.
	DrawdownBaseline DrawdownMethod = "baseline"
	// DrawdownPeakToTrough is the largest fall of the window's compounded
	// wealth index from its running peak.
	DrawdownPeakToTrough DrawdownMethod = "peak"
)

// ParseDrawdownMethod validates a drawdown method name
func ParseDrawdownMethod(s string) (DrawdownMethod, error) {
	switch DrawdownMethod(s) {
	case DrawdownBaseline, DrawdownPeakToTrough:
		return DrawdownMethod(s), nil
	case "":
		return DrawdownBaseline, nil
	}
	return "", fmt.Errorf("unknown drawdown method: %q", s)
}

// InsufficientDataError reports a metric that a window is too small or too
// flat to define
type InsufficientDataError struct {
	Metric string
	Points int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s (%d points): %s", e.Metric, e.Points, e.Reason)
}

// Aggregator computes MetricSummary values. RiskFreeRate is an annual rate;
// zero means Sharpe ratios are plain mean over volatility.
type Aggregator struct {
	RiskFreeRate float64
	Drawdown     DrawdownMethod
	log          zerolog.Logger
}

// NewAggregator creates an Aggregator
func NewAggregator(riskFreeRate float64, drawdown DrawdownMethod, log zerolog.Logger) *Aggregator {
	if drawdown == "" {
		drawdown = DrawdownBaseline
	}
	return &Aggregator{
		RiskFreeRate: riskFreeRate,
		Drawdown:     drawdown,
		log:          log,
	}
}

// SummarizeFund computes one summary per period of granularity g for a
// fund's full return series. Periods without data yield nothing.
func (a *Aggregator) SummarizeFund(fund models.Fund, rets []models.ReturnRecord, g models.Granularity) []models.MetricSummary {
	tpy := TradingPeriodsPerYear(rets)
	windows := periods.Partition(rets, g)
	out := make([]models.MetricSummary, 0, len(windows))
	for _, w := range windows {
		if s, ok := a.Summarize(fund, w, tpy); ok {
			out = append(out, s)
		}
	}
	return out
}

// Summarize reduces one window. tpy is the fund-level trading periods per
// year. The second result is false when the window is empty.
func (a *Aggregator) Summarize(fund models.Fund, w periods.Window, tpy float64) (models.MetricSummary, bool) {
	if len(w.Returns) == 0 {
		return models.MetricSummary{}, false
	}
	first, last := w.Returns[0], w.Returns[len(w.Returns)-1]
	r := returns.Floats(w.Returns)
	compound := CompoundReturn(r)

	s := models.MetricSummary{
		Code:             fund.Code,
		Name:             fund.Name,
		Period:           w.Key,
		StartDate:        first.TradingDay,
		EndDate:          last.TradingDay,
		TradingDays:      len(w.Returns),
		TotalReturn:      compound,
		AnnualizedReturn: AnnualizedReturn(compound, calendarSpanDays(first, last)),
	}

	sharpe, err := SharpeRatio(r, tpy, a.RiskFreeRate)
	var ide *InsufficientDataError
	switch {
	case err == nil:
		s.SharpeRatio = &sharpe
	case errors.As(err, &ide):
		a.log.Debug().Str("code", fund.Code).Str("period", w.Key.String()).Err(err).Msg("sharpe ratio omitted")
	}

	switch a.Drawdown {
	case DrawdownPeakToTrough:
		s.MaxDrawdown = PeakToTroughDrawdown(r)
	default:
		s.MaxDrawdown = BaselineDrawdown(w.Returns)
	}
	return s, true
}

// CompoundReturn is the product of (1 + r) over rets, minus one
func CompoundReturn(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	growth := make([]float64, len(rets))
	for i, r := range rets {
		growth[i] = 1 + r
	}
	return floats.Prod(growth) - 1
}

// AnnualizedReturn scales a compound return linearly to a 365-day year.
// A zero-day span cannot be annualized and yields 0.
func AnnualizedReturn(compound float64, spanDays int) float64 {
	if spanDays <= 0 {
		return 0
	}
	return compound / float64(spanDays) * DaysPerYear
}

// SharpeRatio is the mean daily excess return over the sample standard
// deviation, scaled by sqrt(tpy). The annual risk-free rate is spread evenly
// over tpy periods.
func SharpeRatio(rets []float64, tpy, riskFreeRate float64) (float64, error) {
	if len(rets) < 2 {
		return 0, &InsufficientDataError{Metric: "sharpe_ratio", Points: len(rets), Reason: "need at least 2 returns"}
	}
	if tpy <= 0 {
		return 0, &InsufficientDataError{Metric: "sharpe_ratio", Points: len(rets), Reason: "unknown trading cadence"}
	}
	sd := stat.StdDev(rets, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0, &InsufficientDataError{Metric: "sharpe_ratio", Points: len(rets), Reason: "zero volatility"}
	}
	excess := stat.Mean(rets, nil) - riskFreeRate/tpy
	return excess / sd * math.Sqrt(tpy), nil
}

// BaselineDrawdown is min(1.0, min(cumNAV)) - 1. The 1.0 is the implicit
// starting value and clamps windows whose cumulative NAV never drops below
// 1 to 0 instead of reporting a positive drawdown.
func BaselineDrawdown(rets []models.ReturnRecord) float64 {
	low := 1.0
	for _, r := range rets {
		low = math.Min(low, r.CumNAV.InexactFloat64())
	}
	return low - 1
}

// PeakToTroughDrawdown compounds rets into a wealth index starting at 1.0
// and returns the deepest fall from a running peak, as a negative fraction.
func PeakToTroughDrawdown(rets []float64) float64 {
	wealth, peak, worst := 1.0, 1.0, 0.0
	for _, r := range rets {
		wealth *= 1 + r
		peak = math.Max(peak, wealth)
		worst = math.Min(worst, wealth/peak-1)
	}
	return worst
}

// TradingPeriodsPerYear is the fund's trading-day cadence: observed trading
// days divided by the number of distinct calendar years they fall in.
func TradingPeriodsPerYear(rets []models.ReturnRecord) float64 {
	if len(rets) == 0 {
		return 0
	}
	years := make(map[int]struct{})
	for _, r := range rets {
		years[r.TradingDay.Year()] = struct{}{}
	}
	return float64(len(rets)) / float64(len(years))
}

func calendarSpanDays(first, last models.ReturnRecord) int {
	return int(models.Day(last.TradingDay).Sub(models.Day(first.TradingDay)).Hours() / 24)
}
