package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnRecord is the derived daily return of a fund on one trading day.
// CumNAV is carried from the source record so drawdown can be measured
// without going back to the store.
type ReturnRecord struct {
	Code        string          `json:"code"`
	TradingDay  time.Time       `json:"trading_day"`
	DailyReturn decimal.Decimal `json:"daily_return"`
	CumNAV      decimal.Decimal `json:"cum_nav"`
}
