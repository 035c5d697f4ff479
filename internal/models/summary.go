package models

import "time"

// Summary event type constants
const (
	EventTypeSummaryComputed = "FUND_SUMMARY_COMPUTED"
)

// MetricSummary holds the risk/return metrics of one fund over one period
type MetricSummary struct {
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Period           PeriodKey `json:"period"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	TradingDays      int       `json:"trading_days"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	SharpeRatio      *float64  `json:"sharpe_ratio,omitempty"` // nil when undefined
	MaxDrawdown      float64   `json:"max_drawdown"`
}

// SummaryEvent represents a Kafka event for a computed summary
type SummaryEvent struct {
	EventType   string        `json:"event_type"`
	Granularity Granularity   `json:"granularity"`
	Summary     MetricSummary `json:"summary"`
	Timestamp   time.Time     `json:"timestamp"`
}
